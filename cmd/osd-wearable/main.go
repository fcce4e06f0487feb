// Command osd-wearable streams heart rate, accelerometer magnitude and
// battery level to a connected seizure detector over BLE.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/osd-wearable/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "osd-wearable",
		Short: "OpenSeizureDetector wearable daemon",
		Long: `Samples the PPG sensor, accelerometer and battery on a fixed tick and
notifies a connected OpenSeizureDetector peer over BLE:

- heart rate (standard Heart Rate service, 0x180D/0x2A37)
- accelerometer magnitude in m/s² (OSD service 0x85e9/0x85ea)
- battery percent, 0 while charging (OSD service 0x85e9/0x85eb)

SIGUSR1 pauses sampling, SIGUSR2 resumes it.`,
		Version:      version,
		SilenceUsage: true,
		// main() prints clean errors
		SilenceErrors: true,
		RunE:          runRoot,
	}

	f := cmd.Flags()
	f.String("config", "", "YAML configuration file")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.BoolP("verbose", "v", false, "Debug logging (same as --log-level debug)")
	f.Bool("print-state", false, "Read every sensor once, print and exit")
	f.Bool("simulate", false, "Run on synthetic sensors and an in-memory BLE stack")
	f.String("device-name", "", "Advertised BLE name")
	f.Duration("tick", 0, "Sampling tick interval")
	f.String("broker", "", "MQTT broker address (empty disables MQTT)")
	f.Duration("heartbeat", 0, "MQTT heartbeat interval")
	f.String("http", "", "HTTP status address (empty disables)")
	f.Bool("contact-bits", false, "Set sensor contact flags in heart rate measurements")
	f.Bool("ppg-debug", false, "Keep the heart rate extractor trace of the last window")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	log, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	printState, _ := cmd.Flags().GetBool("print-state")
	return run(cfg, printState, log)
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("simulate") {
		cfg.Simulate.Enabled, _ = f.GetBool("simulate")
	}
	if f.Changed("device-name") {
		cfg.DeviceName, _ = f.GetString("device-name")
	}
	if f.Changed("tick") {
		cfg.Tick, _ = f.GetDuration("tick")
	}
	if f.Changed("broker") {
		cfg.MQTT.Broker, _ = f.GetString("broker")
	}
	if f.Changed("heartbeat") {
		cfg.MQTT.Heartbeat, _ = f.GetDuration("heartbeat")
	}
	if f.Changed("http") {
		cfg.HTTP.Addr, _ = f.GetString("http")
	}
	if f.Changed("contact-bits") {
		cfg.HeartRate.ContactBits, _ = f.GetBool("contact-bits")
	}
	if f.Changed("ppg-debug") {
		cfg.PPG.Debug, _ = f.GetBool("ppg-debug")
	}
}

// configureLogger creates a logger with the level chosen by --log-level,
// falling back to --verbose, then info.
func configureLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	logLevel := logrus.InfoLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
