// Package logging configures the process-wide klog logger. Grounded on
// the teacher's cmd/root.go initLogging(): textlogger for structured,
// leveled output, with verbosity driven by a CLI flag bound through
// viper.
package logging

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"
)

// Init configures klog to write to out at the given verbosity. Verbosity
// below 0 is clamped to the default (2: phase transitions and gate
// outcomes, no per-line subprocess chatter).
func Init(out io.Writer, verbosity int) {
	if verbosity < 0 {
		verbosity = 2
	}
	config := textlogger.NewConfig(
		textlogger.Output(out),
		textlogger.Verbosity(verbosity),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(config))

	flagSet := flag.NewFlagSet("releaseforge", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(verbosity)}); err != nil {
		fmt.Fprintf(out, "error parsing log verbosity: %v\n", err)
	}
}

// InitFromViper reads the "log-level" key bound by the root command's
// flags, matching the teacher's pattern of sourcing runtime config from
// viper rather than threading flag values through every call site.
func InitFromViper(out io.Writer) {
	Init(out, viper.GetInt("log-level"))
}
