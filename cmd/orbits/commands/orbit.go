package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/hierarchy"
	"github.com/teranos/orbits/internal/util"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/service"
	"github.com/teranos/orbits/sym"
)

// OrbitCmd represents the orbit command
var OrbitCmd = &cobra.Command{
	Use:   "orbit",
	Short: sym.Orbit + " Manage orbits",
	Long: sym.Orbit + ` orbit — Create, version and browse orbits

Every update appends a new immutable record that supersedes the previous
one; an orbit is always addressed by the ID of its first record.

Examples:
  orbits orbit create --name Running --sphere <sphere-id>
  orbits orbit update <id> --name "Morning run"
  orbits orbit ls --sphere <sphere-id>
  orbits orbit search run
  orbits orbit tree <id> --format json
  orbits orbit history <id>`,
}

var orbitCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an orbit",
	Args:  cobra.NoArgs,
	RunE:  runOrbitCreate,
}

var orbitGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show the latest version of an orbit",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrbitGet,
}

var orbitUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Supersede an orbit with changed fields",
	Long: `Supersede an orbit. Fields not given on the command line keep their
current values. --previous names the version being superseded and defaults
to the latest one.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrbitUpdate,
}

var orbitRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an orbit",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrbitRm,
}

var orbitLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your orbits, or the orbits of a sphere",
	Args:  cobra.NoArgs,
	RunE:  runOrbitLs,
}

var orbitSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: sym.Search + " Find orbits by name prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrbitSearch,
}

var orbitTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: sym.Tree + " Show the hierarchy below an orbit",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrbitTree,
}

var orbitHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List every version of an orbit",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrbitHistory,
}

var (
	orbitName        string
	orbitSphere      string
	orbitParent      string
	orbitFrequency   string
	orbitScale       string
	orbitDescription string
	orbitStart       string
	orbitEnd         string
	orbitPrevious    string
	orbitNoParent    bool
	orbitLsSphere    string
	orbitFormat      string
	treeFormat       string
)

func init() {
	OrbitCmd.AddCommand(orbitCreateCmd)
	OrbitCmd.AddCommand(orbitGetCmd)
	OrbitCmd.AddCommand(orbitUpdateCmd)
	OrbitCmd.AddCommand(orbitRmCmd)
	OrbitCmd.AddCommand(orbitLsCmd)
	OrbitCmd.AddCommand(orbitSearchCmd)
	OrbitCmd.AddCommand(orbitTreeCmd)
	OrbitCmd.AddCommand(orbitHistoryCmd)

	for _, c := range []*cobra.Command{orbitCreateCmd, orbitUpdateCmd} {
		c.Flags().StringVar(&orbitName, "name", "", "Orbit name")
		c.Flags().StringVar(&orbitSphere, "sphere", "", "Sphere ID")
		c.Flags().StringVar(&orbitParent, "parent", "", "Parent orbit ID")
		c.Flags().StringVar(&orbitFrequency, "frequency", "", "Recurrence (ONE_SHOT, DAILY_OR_MORE_1d, LESS_THAN_DAILY_1w, ...)")
		c.Flags().StringVar(&orbitScale, "scale", "", "Scale (Astro, Sub, Atom)")
		c.Flags().StringVar(&orbitDescription, "description", "", "Description")
		c.Flags().StringVar(&orbitStart, "start", "", "Start time (RFC 3339)")
		c.Flags().StringVar(&orbitEnd, "end", "", "End time (RFC 3339)")
	}
	orbitCreateCmd.MarkFlagRequired("name")
	orbitCreateCmd.MarkFlagRequired("sphere")

	orbitUpdateCmd.Flags().StringVar(&orbitPrevious, "previous", "", "Version to supersede (default: latest)")
	orbitUpdateCmd.Flags().BoolVar(&orbitNoParent, "no-parent", false, "Detach the orbit from its parent")

	orbitLsCmd.Flags().StringVar(&orbitLsSphere, "sphere", "", "List the orbits of this sphere")

	for _, c := range []*cobra.Command{orbitCreateCmd, orbitGetCmd, orbitUpdateCmd, orbitLsCmd, orbitSearchCmd, orbitHistoryCmd} {
		c.Flags().StringVarP(&orbitFormat, "format", "f", formatText, "Output format (text, json, yaml)")
	}
	orbitTreeCmd.Flags().StringVarP(&treeFormat, "format", "f", formatTree, "Output format (tree, json, yaml)")
}

func runOrbitCreate(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	o := orbit.Orbit{Name: orbitName}
	if err := applyOrbitFlags(cmd, &o); err != nil {
		return err
	}

	rec, err := svc.CreateOrbit(cmd.Context(), o)
	if err != nil {
		return err
	}
	return printOrbit(cmd.OutOrStdout(), rec, sym.Create+" Created")
}

func runOrbitGet(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args, "orbit")
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := svc.GetOrbit(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printOrbit(cmd.OutOrStdout(), rec, "")
}

func runOrbitUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args, "orbit")
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	latest, err := svc.GetOrbit(cmd.Context(), id)
	if err != nil {
		return err
	}
	current, err := latest.Orbit()
	if err != nil {
		return err
	}

	previous := latest.ID
	if orbitPrevious != "" {
		if previous, err = orbit.ParseID(orbitPrevious); err != nil {
			return errors.Wrap(err, "invalid previous ID")
		}
	}

	updated := *current
	if cmd.Flags().Changed("name") {
		updated.Name = orbitName
	}
	if err := applyOrbitFlags(cmd, &updated); err != nil {
		return err
	}
	if orbitNoParent {
		updated.ParentRef = ""
	}

	rec, err := svc.UpdateOrbit(cmd.Context(), orbit.UpdateOrbitInput{
		OriginalID:   id,
		PreviousID:   previous,
		UpdatedOrbit: updated,
	})
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Nothing changed\n", sym.Orbit)
		return nil
	}
	return printOrbit(cmd.OutOrStdout(), rec, sym.Update+" Updated")
}

func runOrbitRm(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args, "orbit")
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := svc.DeleteOrbit(cmd.Context(), orbit.DeleteOrbitInput{OriginalID: id}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted orbit %s\n", sym.Delete, id)
	return nil
}

func runOrbitLs(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	var recs []*orbit.Record
	if orbitLsSphere != "" {
		sphere, err := orbit.ParseID(orbitLsSphere)
		if err != nil {
			return errors.Wrap(err, "invalid sphere ID")
		}
		recs, err = svc.ListBySphere(cmd.Context(), orbit.ListBySphereInput{SphereRef: sphere})
		if err != nil {
			return err
		}
	} else {
		recs, err = svc.ListMyOrbits(cmd.Context())
		if err != nil {
			return err
		}
	}
	return printOrbits(cmd.OutOrStdout(), recs)
}

func runOrbitSearch(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	recs, err := svc.SearchOrbits(cmd.Context(), orbit.SearchInput{Query: args[0]})
	if err != nil {
		return err
	}
	return printOrbits(cmd.OutOrStdout(), recs)
}

func runOrbitHistory(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args, "orbit")
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	recs, err := svc.OrbitHistory(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printOrbits(cmd.OutOrStdout(), recs)
}

func runOrbitTree(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args, "orbit")
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	tree, err := svc.Hierarchy(cmd.Context(), orbit.HierarchyInput{RootID: id})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if treeFormat != formatTree {
		return writeStructured(w, treeFormat, tree)
	}
	out, err := renderTree(tree)
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	_, err = fmt.Fprintf(w, "%d orbits\n", tree.Size())
	return err
}

// applyOrbitFlags copies the changed field flags onto o.
func applyOrbitFlags(cmd *cobra.Command, o *orbit.Orbit) error {
	flags := cmd.Flags()
	if flags.Changed("sphere") {
		id, err := parseOptionalID(orbitSphere, "sphere")
		if err != nil {
			return err
		}
		o.SphereRef = id
	}
	if flags.Changed("parent") {
		id, err := parseOptionalID(orbitParent, "parent")
		if err != nil {
			return err
		}
		o.ParentRef = id
	}
	if flags.Changed("frequency") {
		o.Frequency = orbit.Frequency(orbitFrequency)
	}
	if flags.Changed("scale") {
		o.Scale = orbit.Scale(orbitScale)
	}

	if flags.Changed("description") || flags.Changed("start") || flags.Changed("end") {
		meta := orbit.OrbitMetadata{}
		if o.Metadata != nil {
			meta = *o.Metadata
		}
		if flags.Changed("description") {
			meta.Description = orbitDescription
		}
		if flags.Changed("start") {
			ts, err := parseTime(orbitStart, "start")
			if err != nil {
				return err
			}
			meta.TimeFrame.StartTime = ts
		}
		if flags.Changed("end") {
			if orbitEnd == "" {
				meta.TimeFrame.EndTime = nil
			} else {
				ts, err := parseTime(orbitEnd, "end")
				if err != nil {
					return err
				}
				meta.TimeFrame.EndTime = util.Ptr(ts)
			}
		}
		o.Metadata = &meta
	}
	return nil
}

// parseTime converts an RFC 3339 timestamp to unix seconds.
func parseTime(value, what string) (float64, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, errors.WithHint(
			errors.NewInvalidRequestError("invalid %s time %q", what, value),
			"use RFC 3339, e.g. 2024-05-01T07:00:00Z",
		)
	}
	return float64(t.UnixNano()) / float64(time.Second), nil
}

func printOrbit(w io.Writer, rec *orbit.Record, verb string) error {
	view, err := service.ViewOrbit(rec)
	if err != nil {
		return err
	}
	if orbitFormat != formatText && orbitFormat != "" {
		return writeStructured(w, orbitFormat, view)
	}

	if verb != "" {
		fmt.Fprintf(w, "%s orbit %s\n", verb, pterm.Bold.Sprint(view.Name))
	} else {
		fmt.Fprintf(w, "%s %s\n", sym.Orbit, pterm.Bold.Sprint(view.Name))
	}
	fmt.Fprintf(w, "  id:      %s\n", view.ID)
	fmt.Fprintf(w, "  version: %s\n", view.RecordID)
	fmt.Fprintf(w, "  sphere:  %s\n", view.SphereRef)
	if !view.ParentRef.IsZero() {
		fmt.Fprintf(w, "  parent:  %s\n", view.ParentRef)
	}
	if view.Frequency != "" {
		fmt.Fprintf(w, "  every:   %s\n", view.Frequency)
	}
	if view.Scale != "" {
		fmt.Fprintf(w, "  scale:   %s\n", view.Scale)
	}
	fmt.Fprintf(w, "  updated: %s by %s\n", view.UpdatedAt.Format(time.RFC3339), view.Author)
	return nil
}

func printOrbits(w io.Writer, recs []*orbit.Record) error {
	views, err := service.ViewOrbits(recs)
	if err != nil {
		return err
	}
	if orbitFormat != formatText && orbitFormat != "" {
		return writeStructured(w, orbitFormat, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "No orbits found")
		return nil
	}

	data := pterm.TableData{{"ID", "VERSION", "NAME", "SCALE", "UPDATED"}}
	for _, v := range views {
		data = append(data, []string{
			v.ID.String(),
			v.RecordID.Short(),
			v.Name,
			string(v.Scale),
			v.UpdatedAt.Format(time.RFC3339),
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// renderTree draws a hierarchy with pterm.
func renderTree(t *hierarchy.Tree) (string, error) {
	out, err := pterm.DefaultTree.WithRoot(treeNode(t)).Srender()
	if err != nil {
		return "", errors.Wrap(err, "failed to render tree")
	}
	return out, nil
}

func treeNode(t *hierarchy.Tree) pterm.TreeNode {
	node := pterm.TreeNode{Text: fmt.Sprintf("%s %s (%s)", sym.Orbit, t.Name, t.ID.Short())}
	for _, c := range t.Children {
		node.Children = append(node.Children, treeNode(c))
	}
	return node
}
