// Package config provides configuration parsing for Easel.
//
// The configuration is stored in easel.json, looked up from the working
// directory upward. A missing file is not an error: every field has a
// working default.
//
// # Configuration File Structure
//
//	{
//	  "workspace": "~/.easel",
//	  "preview": {
//	    "portRangeLow": 3737,
//	    "portRangeHigh": 3747,
//	    "host": "localhost",
//	    "openBrowser": true,
//	    "retention": "720h"
//	  },
//	  "render": {
//	    "command": "mmdc",
//	    "format": "svg",
//	    "theme": "default",
//	    "background": "white",
//	    "scale": 1,
//	    "timeout": "30s"
//	  },
//	  "editor": {
//	    "baseUrl": "https://mermaid.live/edit"
//	  },
//	  "publish": {
//	    "bucket": "my-diagrams",
//	    "prefix": "rendered/"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Workspace:", cfg.WorkspacePath())
package config
