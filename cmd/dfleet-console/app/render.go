package app

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

const maxColWidth = 60

func newTable(header ...any) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = maxColWidth
	t.Wrap = true
	t.AddRow(header...)
	return t
}

func renderNodes(w io.Writer, nodes []v1.FleetNode) {
	t := newTable("NAME", "ADDRESS", "OS", "ARCH")
	for _, n := range nodes {
		t.AddRow(n.DisplayName(), n.Address, n.OSVersion, n.Architecture)
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "\n%d machine(s) found\n", len(nodes))
}

func renderCatalog(w io.Writer, snap *v1.CatalogSnapshot) {
	t := newTable("NAME", "VERSION", "URL", "SHA256")
	for _, e := range snap.Entries {
		t.AddRow(e.Name, e.Version, e.URL, shortHash(e.SHA256))
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "\nsource: %s, fetched %s\n", snap.Source, snap.FetchedAt.Format(time.RFC3339))
}

func renderDevices(w io.Writer, devices []v1.DeviceRecord) {
	t := newTable("NAME", "CATEGORY", "MANUFACTURER", "DRIVER", "UPDATE")
	pending := 0
	for _, d := range devices {
		update := ""
		if d.NeedsUpdate {
			update = "available"
			pending++
		}
		t.AddRow(d.Name, d.Category, d.Manufacturer, d.DriverVersion, update)
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "\n%d device(s), %d with a newer driver\n", len(devices), pending)
}

func renderNodeReport(w io.Writer, r v1.NodeReport) {
	if r.Error != "" {
		fmt.Fprintf(w, "%s: %s\n", r.Node.DisplayName(), r.Error)
	}
	if len(r.Results) > 0 {
		t := newTable("DEVICE", "PACKAGE", "VERSION", "RESULT", "MESSAGE")
		for _, res := range r.Results {
			t.AddRow(res.Device.Name, res.Package.Name, res.Package.Version, result(res.Outcome), res.Outcome.Message)
		}
		fmt.Fprintln(w, t)
	}
	fmt.Fprintf(w, "%s: %d/%d installed\n", r.Node.DisplayName(), r.Succeeded, r.Total)
}

func renderFleetReport(w io.Writer, f v1.FleetReport) {
	t := newTable("MACHINE", "ADDRESS", "INSTALLED", "STATUS")
	for _, r := range f.Nodes {
		status := "updated"
		switch {
		case r.Error != "":
			status = r.Error
		case !r.Updated():
			status = "incomplete"
		}
		t.AddRow(r.Node.DisplayName(), r.Node.Address, fmt.Sprintf("%d/%d", r.Succeeded, r.Total), status)
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "\n%d/%d machine(s) updated\n", f.Succeeded, f.Total)
}

// renderOutcome prints one install outcome as it arrives.
func renderOutcome(w io.Writer, o v1.InstallOutcome) {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s  %s  %s  %s", ts.Local().Format(time.TimeOnly), o.NodeName, o.PackageName, result(o))
	if o.Message != "" {
		line += "  " + o.Message
	}
	fmt.Fprintln(w, line)
}

func result(o v1.InstallOutcome) string {
	if o.Success {
		return "ok"
	}
	if o.Kind != "" {
		return "failed (" + o.Kind + ")"
	}
	return "failed"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
