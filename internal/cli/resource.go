package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
	"github.com/pratik-mahalle/resourcectl/internal/services"
)

const annotationLocal = "local"

func newResourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources", "res"},
		Short:   "Manage resources",
	}

	cmd.AddCommand(newResourceKindsCmd(a))
	cmd.AddCommand(newResourceListCmd(a))
	cmd.AddCommand(newResourceGetCmd(a))
	cmd.AddCommand(newResourceConnectCmd(a))
	cmd.AddCommand(newResourceEditCmd(a))
	cmd.AddCommand(newResourceTestCmd(a))
	cmd.AddCommand(newResourceDeleteCmd(a))
	cmd.AddCommand(newResourceObjectsCmd(a))
	cmd.AddCommand(newResourcePreviewCmd(a))
	cmd.AddCommand(newResourceWatchCmd(a))

	return cmd
}

// resourceView is the json/yaml shape of one listed resource.
type resourceView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Service   string            `json:"service"`
	Status    string            `json:"status,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	Config    map[string]string `json:"config,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func viewOf(e services.Entry) resourceView {
	if e.Err != nil {
		return resourceView{ID: e.Record.ID, Name: e.Record.Name, Service: e.Record.Service, Error: e.Err.Error()}
	}
	r := e.Resource
	v := resourceView{
		ID:      r.ID,
		Name:    r.Name,
		Service: string(r.Kind),
		Status:  string(r.ExecState.Status),
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

// maskConfig replaces sensitive values so they never reach the terminal.
func maskConfig(r *resource.Resource) map[string]string {
	entry := registry.Lookup(r.Kind)
	out := make(map[string]string, len(r.Config))
	for k, v := range r.Config {
		if f, ok := entry.Field(k); ok && f.Sensitive && v != "" {
			v = masked
		}
		out[k] = v
	}
	return out
}

func newResourceKindsCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:         "kinds [kind]",
		Short:       "List supported service kinds, or the fields of one kind",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationLocal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				kind, err := resource.ParseServiceKind(args[0])
				if err != nil {
					return err
				}
				return printKindFields(a, cmd, registry.Lookup(kind))
			}

			type kindView struct {
				Kind         string `json:"kind"`
				Category     string `json:"category"`
				Activated    bool   `json:"activated"`
				Discoverable bool   `json:"discoverable"`
				Docs         string `json:"docs,omitempty"`
			}
			var kinds []kindView
			for _, e := range registry.All() {
				if category != "" && !strings.EqualFold(string(e.Category), category) {
					continue
				}
				kinds = append(kinds, kindView{
					Kind:         string(e.Kind),
					Category:     string(e.Category),
					Activated:    e.Activated,
					Discoverable: e.Discoverable,
					Docs:         e.DocsURL(a.cfg.DocsBaseURL),
				})
			}

			if format := a.output(); format != "table" {
				return printOutput(out, format, kinds)
			}

			t := NewTable(out, "KIND", "CATEGORY", "AVAILABLE", "BROWSABLE", "DOCS")
			for _, k := range kinds {
				t.AppendRow(table.Row{k.Kind, k.Category, yesNo(k.Activated), yesNo(k.Discoverable), k.Docs})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by category (data, compute, cloud, container_registry, notification)")
	return cmd
}

func printKindFields(a *app, cmd *cobra.Command, e *registry.Entry) error {
	out := cmd.OutOrStdout()
	sel := registry.Selection{}
	fmt.Fprintf(out, "Kind:      %s (%s)\n", e.Kind, e.Category)
	if docs := e.DocsURL(a.cfg.DocsBaseURL); docs != "" {
		fmt.Fprintf(out, "Docs:      %s\n", docs)
	}
	if e.Primary != nil {
		fmt.Fprintf(out, "Options:   --primary %s (default %s)\n", strings.Join(e.Primary.Values(), "|"), e.Primary.Default)
		for _, o := range e.Primary.Options {
			if o.Secondary != nil {
				fmt.Fprintf(out, "           --secondary %s under %s\n", strings.Join(o.Secondary.Values(), "|"), o.Value)
			}
		}
	}
	if e.UsesCredentials(sel) {
		fmt.Fprintf(out, "Credential: --credential %s\n", strings.Join(registry.CredentialVariants.Values(), "|"))
	}
	fmt.Fprintln(out)

	t := NewTable(out, "FIELD", "LABEL", "REQUIRED", "SENSITIVE")
	for _, f := range e.Resolve(sel) {
		t.AppendRow(table.Row{f.Name, f.Label, yesNo(f.Required), yesNo(f.Sensitive)})
	}
	t.Render()
	return nil
}

func newResourceListCmd(a *app) *cobra.Command {
	var service, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.manager.Resources(commandContext(cmd), true)
			if err != nil {
				return fmt.Errorf("failed to list resources: %w", err)
			}

			var views []resourceView
			for _, e := range entries {
				v := viewOf(e)
				if service != "" && !strings.EqualFold(v.Service, service) {
					continue
				}
				if status != "" && !strings.EqualFold(v.Status, status) {
					continue
				}
				views = append(views, v)
			}

			out := cmd.OutOrStdout()
			if format := a.output(); format != "table" {
				return printOutput(out, format, views)
			}

			t := NewTable(out, "ID", "NAME", "SERVICE", "STATUS", "CREATED")
			for _, v := range views {
				st := formatExecStatus(resource.ExecStatus(v.Status))
				if v.Error != "" {
					st = color.RedString("invalid: %s", truncate(v.Error, 40))
				}
				created := ""
				if v.CreatedAt != nil {
					created = v.CreatedAt.Format("2006-01-02 15:04")
				}
				t.AppendRow(table.Row{truncate(v.ID, 20), truncate(v.Name, 30), v.Service, st, created})
			}
			t.Render()
			fmt.Fprintf(out, "\n%d resources\n", len(views))
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "filter by service kind")
	cmd.Flags().StringVar(&status, "status", "", "filter by exec status")

	return cmd
}

func newResourceGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|name>",
		Short: "Get resource details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.manager.Find(commandContext(cmd), args[0])
			if err != nil {
				return err
			}

			v := viewOf(services.Entry{Resource: r})
			v.Config = maskConfig(r)

			out := cmd.OutOrStdout()
			if format := a.output(); format != "table" {
				return printOutput(out, format, v)
			}

			fmt.Fprintf(out, "ID:      %s\n", r.ID)
			fmt.Fprintf(out, "Name:    %s\n", r.Name)
			fmt.Fprintf(out, "Service: %s\n", r.Kind)
			fmt.Fprintf(out, "Status:  %s\n", formatExecStatus(r.ExecState.Status))
			if r.ExecState.Error != nil {
				fmt.Fprintf(out, "Error:   %s\n", r.ExecState.Error.Tip)
			}
			if !r.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Created: %s\n", r.CreatedAt.Format(time.RFC3339))
			}
			if r.Conda != nil {
				fmt.Fprintf(out, "Conda:   %s (%s)\n", r.Conda.ID, formatExecStatus(r.Conda.ExecState.Status))
			}
			if len(v.Config) > 0 {
				fmt.Fprintln(out, "Config:")
				keys := make([]string, 0, len(v.Config))
				for k := range v.Config {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s: %s\n", k, v.Config[k])
				}
			}
			return nil
		},
	}
}

// draftFlags are the flags shared by connect and edit.
type draftFlags struct {
	name       string
	fields     []string
	dsn        string
	primary    string
	secondary  string
	credential string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "resource name")
	cmd.Flags().StringArrayVarP(&f.fields, "field", "f", nil, "config field as key=value, or key=@file to read the value from a file")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "postgres:// URL to fill the SQL connection fields")
	cmd.Flags().StringVar(&f.primary, "primary", "", "primary option (e.g. cluster mode)")
	cmd.Flags().StringVar(&f.secondary, "secondary", "", "secondary option under the primary one")
	cmd.Flags().StringVar(&f.credential, "credential", "", "credential type: access_key, config_file_path, config_file_content")
}

// apply fills d from the flags. Selections go first so they cannot clear
// explicitly given fields.
func (f *draftFlags) apply(a *app, d *services.Draft) error {
	if f.primary != "" {
		if err := d.SelectPrimary(f.primary); err != nil {
			return err
		}
	}
	if f.secondary != "" {
		if err := d.SelectSecondary(f.secondary); err != nil {
			return err
		}
	}
	if f.credential != "" {
		if err := d.SelectCredential(f.credential); err != nil {
			return err
		}
	}
	if f.dsn != "" {
		fields, err := parseDSN(f.dsn)
		if err != nil {
			return err
		}
		for k, v := range fields {
			d.Set(k, v)
		}
	}
	fields, err := parseFieldFlags(a.fs, f.fields)
	if err != nil {
		return err
	}
	for k, v := range fields {
		d.Set(k, v)
	}
	if f.name != "" {
		d.Name = f.name
	}
	return nil
}

// promptMissing asks for required fields left empty, hiding sensitive input.
func (a *app) promptMissing(cmd *cobra.Command, d *services.Draft) {
	if !a.isTTY() {
		return
	}
	out := cmd.ErrOrStderr()
	if strings.TrimSpace(d.Name) == "" {
		d.Name = a.promptInput(out, "Name: ")
	}
	entry := registry.Lookup(d.Kind)
	for _, name := range a.manager.Validator().RequiredFields(d.Kind, d.Mode, d.Selection) {
		if strings.TrimSpace(d.Fields[name]) != "" {
			continue
		}
		f, ok := entry.Field(name)
		if !ok {
			continue
		}
		if f.Sensitive {
			d.Set(name, a.promptSecret(out, f.Label+": "))
		} else {
			d.Set(name, a.promptInput(out, f.Label+": "))
		}
	}
}

// submit validates and submits an open dialog, abandoning it on interrupt.
func (a *app) submit(cmd *cobra.Command, dlg *services.Dialog) error {
	if result := dlg.Validate(); !result.OK() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Configuration is invalid:")
		printFieldErrors(cmd.ErrOrStderr(), result.Errors)
		return result.Err()
	}
	ctx := commandContext(cmd)
	err := dlg.Submit(ctx)
	if err != nil && ctx.Err() != nil {
		dlg.Cancel()
	}
	return err
}

func newResourceConnectCmd(a *app) *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "connect <kind>",
		Short: "Connect a new resource",
		Example: `  resourcectl resource connect postgres --name orders --dsn postgres://app@db.internal:5432/orders
  resourcectl resource connect s3 --name lake --credential config_file_path -f bucket=lake -f region=us-east-1 \
      -f config_file_path=~/.aws/credentials -f config_file_profile=default
  resourcectl resource connect bigquery --name warehouse -f project_id=acme -f service_account_credentials=@sa.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := resource.ParseServiceKind(args[0])
			if err != nil {
				return err
			}

			dlg, err := a.manager.OpenDialog(services.DialogOptions{Kind: kind, Mode: services.ModeCreate})
			if err != nil {
				return err
			}
			if err := flags.apply(a, dlg.Draft()); err != nil {
				return err
			}
			a.promptMissing(cmd, dlg.Draft())

			if err := a.submit(cmd, dlg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected %s (%s)\n", dlg.Draft().Name, kind)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newResourceEditCmd(a *app) *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Edit a resource; omitted secrets keep their stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			r, err := a.manager.Find(ctx, args[0])
			if err != nil {
				return err
			}

			dlg, err := a.manager.OpenDialog(services.DialogOptions{Mode: services.ModeEdit, Resource: r})
			if err != nil {
				return err
			}
			if err := flags.apply(a, dlg.Draft()); err != nil {
				return err
			}

			if err := a.submit(cmd, dlg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", dlg.Draft().Name)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newResourceTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <id|name>...",
		Short: "Test resource connections",
		Long:  "Test the connection of one or more resources. Tests of different resources run concurrently.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			names := make(map[string]string, len(args))
			for _, arg := range args {
				r, err := a.manager.Find(ctx, arg)
				if err != nil {
					return err
				}
				names[r.ID] = r.Name
			}

			var g errgroup.Group
			for id := range names {
				g.Go(func() error {
					_, err := a.manager.TestConnection(ctx, id)
					return err
				})
			}
			err := g.Wait()

			ids := make([]string, 0, len(names))
			for id := range names {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return names[ids[i]] < names[ids[j]] })

			snap := a.manager.Tracker().Snapshot()
			failed := 0
			for _, id := range ids {
				status := snap[services.Key{Op: services.OpTest, Target: id}]
				if status.Phase == loading.Failed {
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connection test for %s: %s\n", names[id], formatPhase(status))
			}
			if failed > 1 {
				return fmt.Errorf("%d of %d connection tests failed", failed, len(ids))
			}
			return err
		},
	}
}

func newResourceDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			plan, err := a.manager.PlanDelete(ctx, args[0])
			if err != nil {
				return err
			}
			if plan.Substituted {
				fmt.Fprintf(out, "%s is built in; its Conda environment %s will be removed instead\n", plan.Resource.Name, plan.Target.ID)
			}
			if !plan.Decision.Allowed {
				_, err := a.manager.Delete(ctx, plan)
				return err
			}

			if !yes {
				if !a.isTTY() {
					return fmt.Errorf("refusing to delete %s without --yes", plan.Target.Name)
				}
				if !a.confirm(cmd.ErrOrStderr(), fmt.Sprintf("Delete %s?", plan.Target.Name)) {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			if _, err := a.manager.Delete(ctx, plan); err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %s\n", plan.Target.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newResourceObjectsCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "objects <id|name>",
		Short: "List the objects (tables, collections) a resource holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.manager.ListObjects(commandContext(cmd), args[0], refresh)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format := a.output(); format != "table" {
				return printOutput(out, format, names)
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No objects")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}

func newResourcePreviewCmd(a *app) *cobra.Command {
	var refresh bool
	var limit int

	cmd := &cobra.Command{
		Use:   "preview <id|name> <object>",
		Short: "Preview the rows of one object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.manager.PreviewObject(commandContext(cmd), args[0], args[1], refresh)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format := a.output(); format != "table" {
				return printOutput(out, format, data)
			}

			cols := data.Columns()
			t := NewTable(out, cols...)
			rows := data.Data
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}
			for _, row := range rows {
				r := make(table.Row, len(cols))
				for i, c := range cols {
					r[i] = truncate(fmt.Sprint(row[c]), 40)
				}
				t.AppendRow(r)
			}
			t.Render()
			fmt.Fprintf(out, "\nShowing %d of %d rows\n", len(rows), len(data.Data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print, 0 for all")
	return cmd
}
