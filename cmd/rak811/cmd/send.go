package cmd

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"i4.energy/across/rak811/internal/config"
)

var (
	sendPort    int
	sendPayload string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single uplink through an already joined module",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()

		sctx, scancel := context.WithCancel(context.Background())
		defer scancel()

		m, err := openModem(sctx)
		if err != nil {
			return err
		}
		defer m.Close()

		go m.Loop(sctx)

		if err := m.Send(sctx, sendPort, sendPayload, config.C.Device.SendTimeout); err != nil {
			return errors.Wrap(err, "send error")
		}
		log.WithField("f_port", sendPort).Info("uplink sent")
		return nil
	},
}

func init() {
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", 1, "LoRaWAN port (1-223)")
	sendCmd.Flags().StringVarP(&sendPayload, "payload", "d", "", "hex encoded payload")
}
