// Package config provides the pethublocal configuration file.
//
// The file is YAML and holds the paths and defaults shared by every
// pethublocal command: where the XOR key and the registry database live, the
// log level, the MQTT topic prefix, the sniffer serial port and the decoded
// record feed. Command line flags override values read from the file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/pethublocal/config.yaml or $HOME/.config/pethublocal/config.yaml
//   - macOS: $HOME/.config/pethublocal/config.yaml
//   - Windows: %LOCALAPPDATA%\pethublocal\config.yaml
//
// Relative paths inside the file are resolved against the directory of the
// file itself.
//
// # Usage Example
//
//	cfg, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := registry.Open(ctx, cfg.Database)
//
// # Thread Safety
//
// The default configuration is loaded once using sync.Once. Save is
// protected by a mutex and writes atomically.
package config
