package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vgarvardt/fidebe/feedback"
	"github.com/vgarvardt/fidebe/widget"
)

type sendOptions struct {
	endpoint string
	attach   []string
	labels   map[string]string
	noEnv    bool
}

func newSendCommand(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send a feedback report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if opts.endpoint != "" {
				cfg.Endpoint = opts.endpoint
			}
			if opts.noEnv {
				cfg.Env.Enabled = false
			}
			for k, v := range opts.labels {
				if cfg.Labels == nil {
					cfg.Labels = make(map[string]string)
				}
				cfg.Labels[k] = v
			}
			// a one-shot command has no logs worth attaching
			cfg.Console.Enabled = false

			report := feedback.Report{Text: strings.Join(args, " ")}
			for _, path := range opts.attach {
				a, err := feedback.AttachmentFromFile(path)
				if err != nil {
					return err
				}
				report.Attachments = append(report.Attachments, a)
			}

			w, err := widget.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			sub, err := w.Submit(cmd.Context(), report)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), sub.ID)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.endpoint, "endpoint", "e", "", "endpoint receiving the report, overrides the configuration")
	cmd.Flags().StringArrayVarP(&opts.attach, "attach", "a", nil, "file to attach, can be repeated")
	cmd.Flags().StringToStringVarP(&opts.labels, "label", "l", nil, "label to attach as key=value, can be repeated")
	cmd.Flags().BoolVar(&opts.noEnv, "no-env", false, "do not attach the environment information")
	return cmd
}
