// Command gammarf-station is the station process entrypoint: it boots
// the Kernel from a gammarf.conf INI file and hands control to the
// interactive REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gammarf/station/internal/repl"

	_ "github.com/gammarf/station/internal/modules/adsb"
	_ "github.com/gammarf/station/internal/modules/freqwatch"
	_ "github.com/gammarf/station/internal/modules/ism433"
	_ "github.com/gammarf/station/internal/modules/p25log"
	_ "github.com/gammarf/station/internal/modules/scanner"
	_ "github.com/gammarf/station/internal/modules/single"
	_ "github.com/gammarf/station/internal/modules/snapshot"
	_ "github.com/gammarf/station/internal/modules/tdoa"
	_ "github.com/gammarf/station/internal/modules/tpms"
	_ "github.com/gammarf/station/internal/remotetask"
)

var showVersion bool

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "gammarf-station",
		Short: "gammarf distributed radio-sensing station",
		Long: `gammarf-station connects one radio-sensing node to a gammarf
cluster: it enumerates local wide-band and narrow-band hardware, keeps an
authenticated link to the cluster server, and runs an interactive console
for loading and driving worker modules (ADS-B, TPMS, 433MHz, spectrum
scanning, frequency watching, snapshots, TDOA, and remote task dispatch).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(repl.VersionString)
				return nil
			}

			k, err := repl.Boot(configPath)
			if err != nil {
				return err
			}
			return k.Run()
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "./gammarf.conf", "path to gammarf.conf")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
