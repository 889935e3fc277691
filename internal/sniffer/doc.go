// Package sniffer turns 802.15.4 sniffer output into radio frames.
//
// Two line formats are understood:
//
//	Src=<mac> Dst=<mac> [Packet Len=..] Payload=<hex>   MRF24J40 serial console
//	<epoch>\t<src>\t<dst>\t<hex>                        tshark field export
//
// Console addresses are printed least significant byte first without
// separators; tshark addresses are colon separated in the same order. Both
// are reversed into the upper case form used in hub topics.
package sniffer
