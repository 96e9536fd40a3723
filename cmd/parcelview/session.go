package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/parcelbook/internal/client"
	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/export"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/mapview"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

const usage = `commands:
  on | off                 show or hide parcel boundaries
  zoom N                   finish a zoom gesture at level N
  move LAT LNG ZOOM        finish a pan (debounced)
  flush                    apply a pending pan now
  county NAME              switch county
  select ID                toggle selection of a parcel
  save ID | unsave ID      save or unsave a parcel
  saveall                  save every selected parcel
  saved                    reload the saved set from the server
  check ID | checkall | uncheckall
                           mark parcels for skip tracing
  labels on|off            show display numbers
  export                   write selected parcels to CSV
  skiptrace PROVIDER       skip trace checked (or selected) parcels
  sessions                 list skip trace sessions
  export-session LETTER    write a skip trace session to CSV
  counties                 list counties
  quit`

var errQuit = errors.New("quit")

// backend is the part of the API client the session calls directly.
type backend interface {
	mapview.API
	Counties(ctx context.Context) ([]counties.County, error)
	Export(ctx context.Context, ids []int64) ([]byte, error)
	SkipTrace(ctx context.Context, provider string, recs []skiptrace.Record) (*client.SkipTraceOutcome, error)
}

// session binds one controller and overlay to a line-oriented command loop.
type session struct {
	api     backend
	cache   *parcelcache.Cache
	catalog *counties.Catalog
	overlay *mapview.Overlay
	ctl     *mapview.Controller
	log     *logger.Logger

	exportDir string
	now       func() time.Time
	runs      []*traceRun

	outMu sync.Mutex
	out   io.Writer
}

func newSession(api backend, cache *parcelcache.Cache, catalog *counties.Catalog, out io.Writer, log *logger.Logger) *session {
	return &session{
		api:       api,
		cache:     cache,
		catalog:   catalog,
		overlay:   mapview.NewOverlay(mapview.NewStore(), api, log),
		log:       log,
		exportDir: ".",
		now:       time.Now,
		out:       out,
	}
}

func (s *session) start(county string, center orb.Point, zoom int, debounce time.Duration) {
	s.ctl = mapview.NewController(s.cache, s.overlay, county, mapview.Options{
		Renderer: s.render,
		Center:   center,
		Zoom:     zoom,
		Debounce: debounce,
	}, s.log)
}

func (s *session) close() {
	if s.ctl != nil {
		s.ctl.Close()
	}
}

func (s *session) printf(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

// render prints one line per view. Called from the debounce timer as well as
// the command loop.
func (s *session) render(v mapview.View) {
	var selected, saved int
	for _, f := range v.Features {
		if f.Selected {
			selected++
		}
		if f.Saved {
			saved++
		}
	}
	s.printf("view #%d county=%s state=%s zoom=%d center=%.5f,%.5f features=%d selected=%d saved=%d",
		v.Seq, v.CountyKey, v.State, v.Viewport.Zoom,
		v.Viewport.Center.Lat(), v.Viewport.Center.Lon(),
		len(v.Features), selected, saved)

	if !v.Viewport.Labels {
		return
	}
	for _, f := range v.Features {
		if f.Label != "" && (f.Selected || f.Saved) {
			s.printf("  %d %s", f.ID, f.Label)
		}
	}
}

func (s *session) syncSaved(ctx context.Context) error {
	return s.overlay.SyncSaved(ctx, s.ctl.County())
}

// run executes commands until EOF or quit. A pending pan is applied before returning.
func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		err := s.exec(ctx, line)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			s.printf("error: %v", err)
		}
	}
	s.ctl.FlushMoves()
	return scanner.Err()
}

func (s *session) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return errQuit

	case "help":
		s.printf("%s", usage)
		return nil

	case "on", "off":
		return s.ctl.ToggleBoundaries(ctx, cmd == "on")

	case "zoom":
		zoom, err := intArg(args, 0, "zoom level")
		if err != nil {
			return err
		}
		s.ctl.ZoomEnd(zoom)
		return nil

	case "move":
		if len(args) != 3 {
			return fmt.Errorf("usage: move LAT LNG ZOOM")
		}
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q", args[0])
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q", args[1])
		}
		zoom, err := intArg(args, 2, "zoom level")
		if err != nil {
			return err
		}
		s.ctl.MoveEnd(orb.Point{lng, lat}, zoom)
		return nil

	case "flush":
		s.ctl.FlushMoves()
		return nil

	case "county":
		if len(args) == 0 {
			return fmt.Errorf("usage: county NAME")
		}
		county, ok := s.catalog.Lookup(strings.Join(args, " "))
		if !ok {
			return fmt.Errorf("unknown county %q", strings.Join(args, " "))
		}
		s.ctl.ChangeCounty(county.Key)
		return s.syncSaved(ctx)

	case "select":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		selected, err := s.overlay.Toggle(ctx, id)
		if err != nil {
			return err
		}
		if selected {
			s.printf("selected %d%s", id, s.tempSuffix(id))
		} else {
			s.printf("deselected %d", id)
		}
		s.ctl.Refresh()
		return nil

	case "save":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		out, err := s.overlay.Save(ctx, id)
		if err != nil {
			return err
		}
		s.printf("%s (%s)", out.Message, out.Saved.DisplayNumber())
		s.ctl.Refresh()
		return nil

	case "unsave":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		if err := s.overlay.Unsave(ctx, id); err != nil {
			return err
		}
		s.printf("unsaved %d", id)
		s.ctl.Refresh()
		return nil

	case "saveall":
		res := s.overlay.SaveAll(ctx, s.overlay.Store().Selected())
		s.printf("%s", res.Message)
		s.ctl.Refresh()
		return nil

	case "saved":
		if err := s.syncSaved(ctx); err != nil {
			return err
		}
		s.printf("%d saved properties", s.overlay.Store().SavedCount())
		s.ctl.Refresh()
		return nil

	case "check":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		s.overlay.Store().ToggleChecked(id)
		return nil

	case "checkall":
		s.overlay.Store().CheckAll()
		return nil

	case "uncheckall":
		s.overlay.Store().UncheckAll()
		return nil

	case "labels":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("usage: labels on|off")
		}
		s.ctl.SetLabels(args[0] == "on")
		return nil

	case "export":
		return s.export(ctx)

	case "skiptrace":
		if len(args) != 1 {
			return fmt.Errorf("usage: skiptrace PROVIDER")
		}
		return s.skipTrace(ctx, args[0])

	case "sessions":
		return s.listRuns()

	case "export-session":
		if len(args) != 1 {
			return fmt.Errorf("usage: export-session LETTER")
		}
		return s.exportRun(args[0])

	case "counties":
		list, err := s.api.Counties(ctx)
		if err != nil {
			return err
		}
		for _, c := range list {
			s.printf("%-10s %-4s %s available=%t", c.Key, c.Prefix, c.Name, c.Available)
		}
		return nil
	}

	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (s *session) tempSuffix(id int64) string {
	if n, ok := s.overlay.Store().TempNumber(id); ok {
		return " as " + n
	}
	if n, ok := s.overlay.Store().SavedNumber(id); ok {
		return " saved as " + n
	}
	return ""
}

func (s *session) export(ctx context.Context) error {
	ids := s.overlay.Store().Selected()
	if len(ids) == 0 {
		return fmt.Errorf("no parcels selected")
	}

	data, err := s.api.Export(ctx, ids)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	path := filepath.Join(s.exportDir, export.Filename(s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.printf("exported %d parcels to %s", len(ids), path)
	return nil
}

// traceRun is one skiptrace command's results, kept for the life of the session.
type traceRun struct {
	Letter   string
	Provider string
	Started  time.Time
	Results  []skiptrace.Result
}

func (r *traceRun) completed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == skiptrace.StatusCompleted {
			n++
		}
	}
	return n
}

// successRate is the share of results with at least one contact found.
func (r *traceRun) successRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	found := 0
	for _, res := range r.Results {
		if res.Status == skiptrace.StatusCompleted && !res.Contact.Empty() {
			found++
		}
	}
	return float64(found) / float64(len(r.Results)) * 100
}

// runLetter names the n-th run (0-based): A..Z, then AA, AB and so on.
func runLetter(n int) string {
	letter := ""
	for n >= 0 {
		letter = string(rune('A'+n%26)) + letter
		n = n/26 - 1
	}
	return letter
}

// skipTrace submits checked (or selected) parcels one request at a time so a
// slow or failing record does not hold back the rest, printing progress as
// each one finishes.
func (s *session) skipTrace(ctx context.Context, provider string) error {
	store := s.overlay.Store()
	ids := store.Checked()
	if len(ids) == 0 {
		ids = store.Selected()
	}
	if len(ids) == 0 {
		return fmt.Errorf("no parcels checked or selected")
	}

	recs := make([]skiptrace.Record, 0, len(ids))
	for _, id := range ids {
		if p, ok := store.Detail(id); ok {
			recs = append(recs, skiptrace.RecordFromProperty(p))
			continue
		}
		recs = append(recs, skiptrace.Record{PropertyID: id})
	}

	run := &traceRun{
		Letter:   runLetter(len(s.runs)),
		Provider: provider,
		Started:  s.now(),
		Results:  make([]skiptrace.Result, 0, len(recs)),
	}
	s.printf("skip trace session %s via %s: %d records", run.Letter, provider, len(recs))

	for i := range recs {
		if ctx.Err() != nil {
			break
		}
		res := s.traceOne(ctx, provider, recs[i])
		run.Results = append(run.Results, res)
		s.printf("[%d/%d] %s", i+1, len(recs), describeResult(res))
	}

	s.runs = append(s.runs, run)
	done := run.completed()
	s.printf("session %s: %d completed, %d failed, %.0f%% found", run.Letter, done, len(run.Results)-done, run.successRate())
	return ctx.Err()
}

// traceOne looks up a single record. Request errors become a failed result.
func (s *session) traceOne(ctx context.Context, provider string, rec skiptrace.Record) skiptrace.Result {
	out, err := s.api.SkipTrace(ctx, provider, []skiptrace.Record{rec})
	if err != nil {
		s.log.Warn("Skip trace request failed", map[string]interface{}{
			"property_id": rec.PropertyID,
			"provider":    provider,
			"error":       err.Error(),
		})
		return skiptrace.Result{PropertyID: rec.PropertyID, Status: skiptrace.StatusFailed, Error: err.Error()}
	}
	for _, r := range out.Results {
		if r.PropertyID == rec.PropertyID {
			return r
		}
	}
	return skiptrace.Result{PropertyID: rec.PropertyID, Status: skiptrace.StatusFailed, Error: "no result returned"}
}

func describeResult(r skiptrace.Result) string {
	switch {
	case r.Status != skiptrace.StatusCompleted:
		return fmt.Sprintf("%d %s: %s", r.PropertyID, r.Status, r.Error)
	case r.Contact.Empty():
		return fmt.Sprintf("%d no contact found", r.PropertyID)
	default:
		return fmt.Sprintf("%d %s mobiles=%s landlines=%s emails=%s", r.PropertyID, r.FoundPersonName,
			strings.Join(r.Contact.Mobiles, ","),
			strings.Join(r.Contact.Landlines, ","),
			strings.Join(r.Contact.Emails, ","))
	}
}

func (s *session) listRuns() error {
	if len(s.runs) == 0 {
		return fmt.Errorf("no skip trace sessions yet")
	}
	for _, r := range s.runs {
		s.printf("%s %s %s records=%d completed=%d found=%.0f%%", r.Letter, r.Started.Format("2006-01-02 15:04"),
			r.Provider, len(r.Results), r.completed(), r.successRate())
	}
	return nil
}

func (s *session) exportRun(letter string) error {
	var run *traceRun
	for _, r := range s.runs {
		if strings.EqualFold(r.Letter, letter) {
			run = r
			break
		}
	}
	if run == nil {
		return fmt.Errorf("unknown skip trace session %q", letter)
	}

	var buf bytes.Buffer
	if err := export.WriteSkipTraceCSV(&buf, run.Results); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	path := filepath.Join(s.exportDir, export.SkipTraceFilename(run.Letter, s.now()))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.printf("exported session %s (%d results) to %s", run.Letter, len(run.Results), path)
	return nil
}

func idArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one parcel id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid parcel id %q", args[0])
	}
	return id, nil
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return n, nil
}
