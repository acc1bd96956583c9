package common

// Version is set at build time with -ldflags "-X github.com/privy-io/privy-go/common.Version=..."
var Version = "dev"

// ClientName is sent in the privy-client header as ClientName:Version.
const ClientName = "go-sdk"

func ClientHeader() string {
	return ClientName + ":" + Version
}
