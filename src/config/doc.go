// Package config defines the configuration of the bootstrapper.
//
// Regardless of how a bootstrap is driven, from the node's startup sequence
// or from the chainboot command line, it uses the Config object defined in
// this package. Everything happens relative to the node's data directory,
// Config.DataDir, where the following entries are used:
//
//  blocks/, chainstate/ // the live chain data replaced by a snapshot.
//  galilel.conf // the live node configuration, merged with the snapshot's.
//  bootstrap.zip // a downloaded snapshot archive.
//  bootstrap/ // staging folder the archive is extracted into.
//  bootstrap/verified // marker written once the staged snapshot is verified.
//  bootstrap.journal/ // Badger database with the history of runs.
//  peers.dat, banlist.dat // dropped after installation, rebuilt by the node.
package config
