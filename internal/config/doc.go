// Package config loads bindery.json, the settings file for the bindery
// command line.
//
// # Configuration File Structure
//
//	{
//	  "logLevel": "info",
//	  "scope": {
//	    "maxPassDepth": 64,
//	    "strict": false
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "bindery",
//	    "subsystem": ""
//	  },
//	  "tracing": {
//	    "enabled": false,
//	    "tracerName": "bindery"
//	  }
//	}
//
// Missing fields take the defaults returned by New.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scope := model.NewScope(nil, cfg.ScopeOptions()...)
package config
