// Package protocol implements the Doorstep announcement wire format.
//
// Doorstep servers advertise their presence by sending UDP datagrams to the
// multicast group 239.255.255.250 on port 12345. Each datagram carries one
// UTF-8 JSON object:
//
//	{
//	  "name":   "Front Door",
//	  "host":   "192.168.1.10",
//	  "port":   8080,
//	  "apiURL": "http://192.168.1.10:8080",
//	  "wsURL":  "ws://192.168.1.10:8080"
//	}
//
// There is no length prefix, no acknowledgement, and no authentication. A
// server is "present" purely by virtue of recently observed datagrams; the
// receiver in the discovery package handles freshness tracking.
//
// All five fields are required. A payload that is not valid JSON, is missing
// a field, or carries a field with the wrong JSON type fails to decode with
// a *DecodeError. Datagram decode failures are always local to one message
// and never fatal to a receiver.
package protocol
