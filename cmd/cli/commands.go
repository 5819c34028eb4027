package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
)

type opener func(cmd *cobra.Command) (*Runtime, error)

// withRuntime opens the runtime, runs fn and always closes the store.
func withRuntime(open opener, fn func(cmd *cobra.Command, rt *Runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		if rt.Close != nil {
			defer rt.Close()
		}
		return fn(cmd, rt)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPoliciesCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Print and validate the effective quota policy table",
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *Runtime) error {
			policies := rt.App.Policies()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), policies)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTION\tLIMIT\tWINDOW\tOVERRIDDEN")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", p.Action, p.Limit, time.Duration(p.WindowSeconds)*time.Second, p.Overridden)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// identityFlags selects one identity key. --address is hashed the same way the
// server hashes a caller address; --key is used verbatim.
type identityFlags struct {
	keyType string
	key     string
	address string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyType, "key-type", string(constants.KeyTypeNetwork), "identity key type (network, device, session)")
	cmd.Flags().StringVar(&f.key, "key", "", "identity key value as stored")
	cmd.Flags().StringVar(&f.address, "address", "", "client address to hash into a network key")
}

func (f *identityFlags) resolve(rt *Runtime) (models.IdentityKey, error) {
	if f.address != "" {
		return rt.Resolver.ResolveNetwork(f.address, ""), nil
	}
	keyType := constants.KeyType(f.keyType)
	if !keyType.Valid() {
		return models.IdentityKey{}, errors.ErrInvalidRequest(fmt.Sprintf("unknown key type %q", f.keyType))
	}
	if f.key == "" {
		return models.IdentityKey{}, errors.ErrInvalidRequest("one of --key or --address is required")
	}
	return models.NewIdentityKey(keyType, f.key), nil
}

func newUsageCmd(open opener) *cobra.Command {
	var (
		id     identityFlags
		action string
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the current window's counter for a key and action",
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *Runtime) error {
			key, err := id.resolve(rt)
			if err != nil {
				return err
			}
			usage, err := rt.App.Usage(cmd.Context(), key, constants.ActionCategory(action))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), usage)
		}),
	}
	id.register(cmd)
	cmd.Flags().StringVar(&action, "action", "", "action category")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newCheckCmd(open opener) *cobra.Command {
	var (
		action  string
		address string
		device  string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one admission check, consuming quota when allowed",
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *Runtime) error {
			signals := []models.IdentityKey{rt.Resolver.ResolveNetwork(address, "")}
			if key, ok := rt.Resolver.ResolveDevice(device); ok {
				signals = append(signals, key)
			}

			result, err := rt.App.Admit(cmd.Context(), constants.ActionCategory(action), signals)
			if result == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if !result.Allowed {
				return fmt.Errorf("denied by %s key, retry after %s", result.DeniedBy, result.ResetTime.UTC().Format(time.RFC3339))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&action, "action", "", "action category")
	cmd.Flags().StringVar(&address, "address", constants.LoopbackPlaceholder, "client address")
	cmd.Flags().StringVar(&device, "device", "", "device token")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newPruneCmd(open opener) *cobra.Command {
	var (
		before    string
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete counter rows whose window started before a cutoff",
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *Runtime) error {
			cutoff, err := pruneCutoff(rt, before, olderThan)
			if err != nil {
				return err
			}
			deleted, err := rt.App.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d counter rows with window start before %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
			return nil
		}),
	}
	cmd.Flags().StringVar(&before, "before", "", "RFC 3339 cutoff")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff, defaults to store.retention")
	return cmd
}

func pruneCutoff(rt *Runtime, before string, olderThan time.Duration) (time.Time, error) {
	if before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return time.Time{}, errors.ErrInvalidRequest("--before must be an RFC 3339 timestamp")
		}
		return t, nil
	}
	age := olderThan
	if age <= 0 {
		age = rt.Retention
	}
	if age <= 0 {
		age = constants.DefaultCounterRetention
	}
	now := time.Now
	if rt.Now != nil {
		now = rt.Now
	}
	return now().Add(-age), nil
}

//Personal.AI order the ending
