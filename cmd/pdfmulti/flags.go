package main

import (
	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config    string
	quiet     bool
	verbose   bool
	logFormat string
}

// renderFlags holds render engine flags.
type renderFlags struct {
	timeout      string
	assetTimeout string
	browserBin   string
	workers      int
}

// outputFlags holds output destination flags.
type outputFlags struct {
	dir         string
	gcsBucket   string
	gcsPrefix   string
	noOverwrite bool
}

// serveFlags holds HTTP host flags.
type serveFlags struct {
	addr         string
	redisAddr    string
	contentTTL   string
	singleFlight bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json")
}

// addRenderFlags adds render engine flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVarP(&f.timeout, "timeout", "t", "", "page load timeout (e.g., 30s, 2m)")
	fs.StringVar(&f.assetTimeout, "asset-timeout", "", "image load timeout (default: wait indefinitely)")
	fs.StringVar(&f.browserBin, "browser-bin", "", "Chrome/Chromium binary (default: ROD_BROWSER_BIN or auto-download)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
}

// addOutputFlags adds output destination flags to a FlagSet.
func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVarP(&f.dir, "output", "o", "", "output directory (default: next to each source)")
	fs.StringVar(&f.gcsBucket, "gcs-bucket", "", "upload to this Cloud Storage bucket instead of writing files")
	fs.StringVar(&f.gcsPrefix, "gcs-prefix", "", "object name prefix for --gcs-bucket")
	fs.BoolVar(&f.noOverwrite, "no-overwrite", false, "fail instead of replacing existing objects (--gcs-bucket only)")
}

// addServeFlags adds HTTP host flags to a FlagSet.
func addServeFlags(fs *flag.FlagSet, f *serveFlags) {
	fs.StringVar(&f.addr, "addr", "", "listen address (default :8080)")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for session content (default: in memory)")
	fs.StringVar(&f.contentTTL, "content-ttl", "", "session content expiry (default: never)")
	fs.BoolVar(&f.singleFlight, "single-flight", true, "reject a download while the same session is converting")
}
