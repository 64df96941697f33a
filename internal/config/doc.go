// Package config loads ck's own configuration file.
//
// The file is config.yaml, searched in the working directory and then in
// <XDG config home>/claudekit (or $CK_CONFIG_DIR). Every key can also be
// set through a CK_ prefixed environment variable.
//
//	version: 1
//	default_providers: [claude, codex]
//	concurrency: 0          # 0 means GOMAXPROCS
//	retry:
//	  attempts: 3
//	  base_delay: 50ms
//	conflicts:
//	  modified: skip        # skip | backup | overwrite | prompt
//	  untracked: skip
//	backup:
//	  dir: ~/backups/ck
//	  retention: 5
//	kit:
//	  ignore: ["**/drafts/**"]
//	providers:
//	  claude:
//	    global_dir: ~/.config/claude
//
// Loaded configurations are validated; [Validate] returns every problem
// found rather than stopping at the first.
package config
