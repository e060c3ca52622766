package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simConfig{}

	cmd := &cobra.Command{
		Use:   "avlsim",
		Short: "Teltonika AVL device simulator",
		Long: `avlsim connects to an AVL server like a Teltonika tracker: it sends the
IMEI handshake, then --count Codec 8 or 8E frames built from --lat, --lon and
--speed, and prints the ACK the server returns for each frame.

Use --corrupt-crc to check that the server answers 0 to a damaged frame and
--keepalive to send an empty frame first.`,
		Version:      "1.0.0",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Host, "host", "127.0.0.1", "Server host")
	f.IntVar(&cfg.Port, "port", 5027, "Server TCP port")
	f.StringVar(&cfg.IMEI, "imei", "356307042441013", "Device IMEI")
	f.Float64Var(&cfg.Lat, "lat", 19.4326, "Latitude in degrees")
	f.Float64Var(&cfg.Lon, "lon", -99.1332, "Longitude in degrees")
	f.Float64Var(&cfg.Speed, "speed", 0, "Speed in km/h")
	f.IntVar(&cfg.Count, "count", 1, "Number of frames to send")
	f.IntVar(&cfg.Records, "records", 1, "Records per frame")
	f.StringVar(&cfg.Codec, "codec", "8", "Codec: 8 or 8e")
	f.DurationVar(&cfg.Interval, "interval", 0, "Pause between frames")
	f.BoolVar(&cfg.CorruptCRC, "corrupt-crc", false, "Flip the CRC of every frame")
	f.BoolVar(&cfg.KeepAlive, "keepalive", false, "Send a keep-alive frame before the data frames")
	return cmd
}
