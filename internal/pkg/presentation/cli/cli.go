package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/diwise/warp/pkg/warp/config"
	"github.com/diwise/warp/pkg/warp/objects"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type settings struct {
	configPath string
	serverURL  string
	apiKey     string
	masterKey  string
}

// NewRootCmd returns the warpctl command tree
func NewRootCmd(version string) *cobra.Command {
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:     "warpctl",
		Short:   "warpctl - create, update and destroy objects on a Warp server",
		Version: version,
		Long: `warpctl talks to a Warp server using the same object model as the Go client.
Attributes are given as key=value pairs. Values are parsed as JSON when possible,
ptr:<Class>:<id> refers to an existing object and file:<key> to an uploaded file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", "", "path to a warp client configuration file")
	rootCmd.PersistentFlags().StringVar(&s.serverURL, "server", "", "url of the Warp server api, e.g. http://localhost:8080/api/1")
	rootCmd.PersistentFlags().StringVar(&s.apiKey, "api-key", "", "api key to send with each request")
	rootCmd.PersistentFlags().StringVar(&s.masterKey, "master-key", "", "master key to send with each request")

	rootCmd.AddCommand(createCmd(s))
	rootCmd.AddCommand(updateCmd(s))
	rootCmd.AddCommand(incrementCmd(s))
	rootCmd.AddCommand(destroyCmd(s))

	return rootCmd
}

func createCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "create <class> [key=value...]",
		Short: "Create a new object",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			w, err := s.connect(ctx)
			if err != nil {
				return err
			}

			attributes, err := ParseAssignments(w, args[1:])
			if err != nil {
				return err
			}

			o, err := w.New(args[0], attributes)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}

			if _, err = o.Save(ctx); err != nil {
				return fmt.Errorf("failed to save %s: %w", args[0], err)
			}

			printResult(cmd.OutOrStdout(), "created", o)
			return nil
		},
	}
}

func updateCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "update <class> <id> [key=value...]",
		Short: "Update attributes of an existing object",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			w, err := s.connect(ctx)
			if err != nil {
				return err
			}

			attributes, err := ParseAssignments(w, args[2:])
			if err != nil {
				return err
			}

			o := w.CreateWithoutData(args[0], args[1])
			if _, err = o.SetAll(attributes); err != nil {
				return err
			}

			if _, err = o.Save(ctx); err != nil {
				return fmt.Errorf("failed to update %s %s: %w", args[0], args[1], err)
			}

			printResult(cmd.OutOrStdout(), "updated", o)
			return nil
		},
	}
}

func incrementCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "increment <class> <id> <key> <delta>",
		Short: "Atomically add delta to a numeric attribute",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			w, err := s.connect(ctx)
			if err != nil {
				return err
			}

			o := w.CreateWithoutData(args[0], args[1])
			if _, err = o.Increment(args[2], args[3]); err != nil {
				return err
			}

			if _, err = o.Save(ctx); err != nil {
				return fmt.Errorf("failed to increment %s on %s %s: %w", args[2], args[0], args[1], err)
			}

			printResult(cmd.OutOrStdout(), "incremented", o)
			return nil
		},
	}
}

func destroyCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <class> <id>",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			w, err := s.connect(ctx)
			if err != nil {
				return err
			}

			o := w.CreateWithoutData(args[0], args[1])
			if _, err = o.Destroy(ctx); err != nil {
				return fmt.Errorf("failed to destroy %s %s: %w", args[0], args[1], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", color.New(color.FgRed).Sprint("destroyed"), args[0], args[1])
			return nil
		},
	}
}

// connect loads the client configuration, lets the environment and then the flags override it
func (s *settings) connect(ctx context.Context) (*objects.Warp, error) {
	opts := &config.Options{}

	if s.configPath != "" {
		f, err := os.Open(s.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open configuration file: %w", err)
		}
		defer f.Close()

		opts, err = config.Load(ctx, f)
		if err != nil {
			return nil, err
		}
	}

	opts.ApplyEnvironment(ctx)

	if s.serverURL != "" {
		opts.ServerURL = s.serverURL
	}
	if s.apiKey != "" {
		opts.APIKey = s.apiKey
	}
	if s.masterKey != "" {
		opts.MasterKey = s.masterKey
	}

	return config.NewWarp(ctx, opts)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printResult(out io.Writer, verb string, o *objects.Object) {
	fmt.Fprintf(out, "%s %s %s\n", color.New(color.FgGreen).Sprint(verb), o.ClassName(), color.New(color.FgYellow).Sprint(o.ID()))

	attributes := o.ToJSON()

	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyColor := color.New(color.FgCyan)

	for _, k := range keys {
		b, err := json.Marshal(attributes[k])
		if err != nil {
			b = []byte(fmt.Sprintf("%v", attributes[k]))
		}
		fmt.Fprintf(out, "  %s: %s\n", keyColor.Sprint(k), string(b))
	}
}
