package urls

// Documentation URLs for guides and troubleshooting
// All URLs point to the documentation site at https://doorstep-home.github.io/doorstep/

// GettingStarted is the quick start guide for connecting the client
// to a Doorstep server for the first time.
const GettingStarted = "https://doorstep-home.github.io/doorstep/getting-started/"

// DiscoveryTroubleshooting covers why a server on the same network may
// not show up in a scan (multicast filtering, mDNS blocked, VLANs).
const DiscoveryTroubleshooting = "https://doorstep-home.github.io/doorstep/troubleshooting/discovery/"

// NetworkRequirements documents the multicast group, ports, and firewall
// rules a LAN needs for announcements and mDNS to reach the client.
const NetworkRequirements = "https://doorstep-home.github.io/doorstep/reference/network/"
