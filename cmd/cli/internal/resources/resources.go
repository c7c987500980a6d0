package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redbco/redb-persistence/cmd/cli/internal/session"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
	"github.com/redbco/redb-persistence/pkg/health"
	"github.com/redbco/redb-persistence/pkg/persistence"
	"github.com/redbco/redb-persistence/pkg/uri"
)

// ParseOptions turns key=value arguments into handler options.
func ParseOptions(pairs []string) (persistence.Options, error) {
	opts := make(persistence.Options, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", p)
		}
		opts[k] = strings.TrimSpace(v)
	}
	return opts, nil
}

func parse(raw string) (uri.URI, error) {
	u, err := uri.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uri.URI{}, fmt.Errorf("invalid resource %q: %w", raw, err)
	}
	return u, nil
}

// Get writes the stored resource to out, indented when pretty is set.
func Get(ctx context.Context, s *session.Session, raw string, opts persistence.Options, out io.Writer, pretty bool) error {
	u, err := parse(raw)
	if err != nil {
		return err
	}

	r, err := s.Handler.OpenInput(ctx, u, opts)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", u, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", u, err)
	}

	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	if _, err := out.Write(body); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

// Put stores the document read from in and prints the resulting identifier,
// which carries the id the store assigned when raw had none.
func Put(ctx context.Context, s *session.Session, raw string, opts persistence.Options, in io.Reader, out io.Writer) error {
	u, err := parse(raw)
	if err != nil {
		return err
	}

	w, err := s.Handler.OpenOutput(ctx, u, opts)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", u, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Abort()
		return fmt.Errorf("failed to write %s: %w", u, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to store %s: %w", u, err)
	}

	fmt.Fprintln(out, w.URI().String())
	meta := w.Response().Metadata
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, meta[k])
	}
	return nil
}

// Delete removes the resource.
func Delete(ctx context.Context, s *session.Session, raw string, opts persistence.Options, out io.Writer) error {
	u, err := parse(raw)
	if err != nil {
		return err
	}
	if err := s.Handler.Delete(ctx, u, opts); err != nil {
		return fmt.Errorf("failed to delete %s: %w", u, err)
	}
	fmt.Fprintf(out, "Successfully deleted %s\n", u)
	return nil
}

// Exists prints whether the resource is stored and returns the answer.
func Exists(ctx context.Context, s *session.Session, raw string, opts persistence.Options, out io.Writer) (bool, error) {
	u, err := parse(raw)
	if err != nil {
		return false, err
	}
	found, err := s.Handler.Exists(ctx, u, opts)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", u, err)
	}
	fmt.Fprintln(out, found)
	return found, nil
}

// ListConnections prints the configured connections.
func ListConnections(s *session.Session, out io.Writer) error {
	names := s.Connections.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "No connections configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Name\tType\tLocation\tSSL")
	fmt.Fprintln(w, "----\t----\t--------\t---")
	for _, name := range names {
		cc := s.Config.Connections[name]
		location := cc.Path
		if location == "" {
			location = fmt.Sprintf("%s:%d", cc.Host, cc.Port)
		}
		ssl := "No"
		if cc.SSL {
			ssl = "Yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, cc.ConnectionType, location, ssl)
	}
	return w.Flush()
}

// Drivers lists every known dialect, its capabilities and whether a driver
// for it is registered in r.
func Drivers(r *adapter.Registry, out io.Writer) error {
	ids := dbcapabilities.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Type\tName\tAliases\tParadigms\tPort\tSystem DB\tDriver")
	fmt.Fprintln(w, "----\t----\t-------\t---------\t----\t---------\t------")
	for _, id := range ids {
		c := dbcapabilities.MustGet(id)
		driver := "missing"
		if r.IsRegistered(id) {
			driver = "registered"
			if reported, err := r.GetCapabilities(id); err == nil {
				c = reported
			}
		}

		port := "embedded"
		if !c.Embedded {
			port = strconv.Itoa(c.DefaultPort)
		}
		systemDB := "-"
		if dbcapabilities.HasSystemDB(id) {
			if name, err := dbcapabilities.GetSystemDatabaseName(string(id)); err == nil {
				systemDB = name
			}
		}
		paradigms := make([]string, len(c.Paradigms))
		for i, p := range c.Paradigms {
			paradigms[i] = string(p)
		}
		aliases := "-"
		if len(c.Aliases) > 0 {
			aliases = strings.Join(c.Aliases, ",")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, c.Name, aliases, strings.Join(paradigms, ","), port, systemDB, driver)
	}
	return w.Flush()
}

// Health pings every connection and prints the results. It fails unless all
// connections are healthy.
func Health(ctx context.Context, s *session.Session, database string, timeout time.Duration, out io.Writer) error {
	checker := health.NewChecker()
	checker.CheckConnections(ctx, s.Connections, database, timeout)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Connection\tStatus\tMessage")
	fmt.Fprintln(w, "----------\t------\t-------")
	for _, check := range checker.GetAllChecks() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", check.Name, check.Status, check.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	status := checker.GetOverallStatus()
	fmt.Fprintf(out, "\nOverall: %s\n", status)
	if status != health.StatusHealthy {
		return fmt.Errorf("connections are %s", status)
	}
	return nil
}
