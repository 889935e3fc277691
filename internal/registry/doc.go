// Package registry stores the devices, pets and per-device state of a local
// pet hub in a sqlite database.
//
// The Store type implements protocol.Registry and protocol.CounterStore, so
// a single database backs both the decoder's lookups and write-backs and the
// encoder's device counters. The database is normally seeded from a cloud
// start.json export with Import.
//
// # Tables
//
//	devices        one row per device, keyed by MAC address
//	pets           animals keyed by chip
//	tagmap         chip slot index per device
//	doors          lock mode and curfews of pet doors and cat flaps
//	feeders        bowl configuration and last bowl weights
//	hubs           LED and adoption mode
//	petstate       last seen location per animal and device
//	feeds          feeding history
//	devicecounter  send and receive counters
//
// MAC addresses are stored upper case. Lookups accept any case.
package registry
