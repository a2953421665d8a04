package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/service"
	"github.com/teranos/orbits/sym"
)

// SphereCmd represents the sphere command
var SphereCmd = &cobra.Command{
	Use:   "sphere",
	Short: sym.Sphere + " Manage spheres",
	Long: sym.Sphere + ` sphere — Containers that orbits are grouped under

Examples:
  orbits sphere create --name Health --hashtag "#health"
  orbits sphere ls`,
}

var sphereCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a sphere",
	Args:  cobra.NoArgs,
	RunE:  runSphereCreate,
}

var sphereLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your spheres",
	Args:  cobra.NoArgs,
	RunE:  runSphereLs,
}

var (
	sphereName        string
	sphereDescription string
	sphereHashtag     string
	sphereFormat      string
)

func init() {
	SphereCmd.AddCommand(sphereCreateCmd)
	SphereCmd.AddCommand(sphereLsCmd)

	sphereCreateCmd.Flags().StringVar(&sphereName, "name", "", "Sphere name")
	sphereCreateCmd.Flags().StringVar(&sphereDescription, "description", "", "Description")
	sphereCreateCmd.Flags().StringVar(&sphereHashtag, "hashtag", "", "Hashtag")
	sphereCreateCmd.MarkFlagRequired("name")

	for _, c := range []*cobra.Command{sphereCreateCmd, sphereLsCmd} {
		c.Flags().StringVarP(&sphereFormat, "format", "f", formatText, "Output format (text, json, yaml)")
	}
}

func runSphereCreate(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	sp := orbit.Sphere{Name: sphereName}
	if sphereDescription != "" || sphereHashtag != "" {
		sp.Metadata = &orbit.SphereMetadata{Description: sphereDescription, Hashtag: sphereHashtag}
	}

	rec, err := svc.CreateSphere(cmd.Context(), sp)
	if err != nil {
		return err
	}
	view, err := service.ViewSphere(rec)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if sphereFormat != formatText {
		return writeStructured(w, sphereFormat, view)
	}
	fmt.Fprintf(w, "%s Created sphere %s\n", sym.Create, pterm.Bold.Sprint(view.Name))
	fmt.Fprintf(w, "  id: %s\n", view.ID)
	return nil
}

func runSphereLs(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	recs, err := svc.ListMySpheres(cmd.Context())
	if err != nil {
		return err
	}
	views := make([]*service.SphereView, 0, len(recs))
	for _, rec := range recs {
		v, err := service.ViewSphere(rec)
		if err != nil {
			return err
		}
		views = append(views, v)
	}

	w := cmd.OutOrStdout()
	if sphereFormat != formatText {
		return writeStructured(w, sphereFormat, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "No spheres found")
		return nil
	}

	data := pterm.TableData{{"ID", "NAME", "HASHTAG"}}
	for _, v := range views {
		data = append(data, []string{v.ID.String(), v.Name, v.Hashtag})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
