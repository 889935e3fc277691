// Package capture extracts the hub's MQTT traffic from packet captures.
//
// The hub talks MQTT over TLS to the cloud. Once the TLS layer has been
// removed (for example by a decrypting proxy writing pcap files) the
// plaintext MQTT stream can be read back with Extract, which reassembles
// each TCP stream and returns every PUBLISH in capture order. The topic and
// message are exactly what protocol.Codec.DecodeMQTT expects.
package capture
