// Package config provides configuration parsing for livedom tools.
//
// The configuration is stored in livedom.json (or livedom.yaml) at the
// project root. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "devMode": true,
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  },
//	  "hydration": {
//	    "strict": true
//	  },
//	  "query": {
//	    "timeoutMs": 5000,
//	    "pollIntervalMs": 10
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "livedom"
//	  }
//	}
//
// Omitted fields take their defaults. Parse errors in JSON files carry the
// line and column of the offending byte.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Chain timeout:", cfg.QueryTimeout())
package config
