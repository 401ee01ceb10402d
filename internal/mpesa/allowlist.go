package mpesa

import "strings"

// gatewayIPPrefixes are the published egress ranges callbacks arrive from.
var gatewayIPPrefixes = []string{
	"196.201.214.",
	"196.201.213.",
	"196.201.212.",
}

// IsGatewayIP reports whether ip belongs to the gateway's callback egress.
func IsGatewayIP(ip string) bool {
	ip = strings.TrimSpace(ip)
	for _, prefix := range gatewayIPPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}
