// Package config provides configuration management for bist.
//
// Configuration is loaded from YAML files and merged in order, with later
// sources overriding earlier ones:
//
//  1. Default configuration (built in)
//  2. User configuration (~/.config/bist/config.yaml)
//  3. Project configuration (./.bist/config.yaml)
//
// Command-line flags override the merged result.
//
// # Configuration Structure
//
//	marker: "%!"
//	language: starlark        # or "go"
//	verbosity: normal         # quiet, normal or verbose
//	bugTrackerURL: "https://bugs.example.org/show_bug.cgi?id=%s"
//	features: [json, regexp]
//	runner:
//	  searchPath: [testdata, ../shared]
//	  include: ["*.star"]
//	  failThreshold: 0
//	  shuffle: true
//	  seed: 42
//	  jobs: 4                 # 0 means one per CPU
//	  reportPath: ./reports
//
// Scalars replace the value of earlier layers when set. Features
// accumulate across layers. searchPath and include replace the earlier
// list as a whole.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Language, cfg.EffectiveJobs())
package config
