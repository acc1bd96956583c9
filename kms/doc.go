// Package kms provides authorization keys whose private material is held
// outside the process.
//
// # AWSKey
//
// AWSKey signs with an asymmetric ECC_NIST_P256 key in AWS KMS. The private
// key never leaves KMS; the SHA-256 digest of the canonical request is sent
// with MessageType DIGEST and the DER signature is returned unchanged. The
// public key is fetched once and cached.
//
//	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String("us-east-1")}))
//	key := kms.NewAWSKey(awskms.New(sess), "alias/privy-authorization", log)
//	authCtx := authorization.NewAuthorizationContext(key)
//
// # VaultKey
//
// VaultKey reads a PEM or base64 encoded P-256 key from a Vault KV secret.
// The secret is read on every call; wrap it in authorization.TimeCachingKey
// to bound the number of reads.
//
//	key, err := kms.NewVaultKey(kms.VaultConfig{
//	    Address:   "https://vault.example.com:8200",
//	    Token:     token,
//	    MountPath: "secret",
//	    Path:      "privy/authorization",
//	    KVVersion: 2,
//	}, log)
//	cached := authorization.NewTimeCachingKey(key, time.Minute, nil)
package kms
