package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfgdl/bfg-downloader/internal/download"
	"github.com/bfgdl/bfg-downloader/internal/export"
)

var segmentData = []byte("installer segment payload")

// fakeBigFish serves a one-page catalog listing F1T1L1 and F2T1L1, game info
// for F1T1L1 only, and the segment of F1T1L1.
func fakeBigFish(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"products":{
			"items":[{"sku":"F1T1L1"},{"sku":"F2T1L1"}],
			"total_count":2,
			"page_info":{"total_pages":1}
		}}}`)
	})
	mux.HandleFunc("POST /rpc", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "F1T1L1") {
			http.Error(w, "unknown game", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
 <member><name>gameInfo</name><value><struct>
  <member><name>id</name><value><string>42</string></value></member>
  <member><name>name</name><value><string>Hidden Hunt</string></value></member>
 </struct></value></member>
 <member><name>downloadInfo</name><value><struct>
  <member><name>segmentList</name><value><array><data>
   <value><struct>
    <member><name>fileSegmentName</name><value><string>setup.bin</string></value></member>
    <member><name>urlName</name><value><string>f1t1l1/setup.bin</string></value></member>
   </struct></value>
  </data></array></value></member>
 </struct></value></member>
</struct></value></param></params></methodResponse>`)
	})
	mux.HandleFunc("GET /downloads/f1t1l1/setup.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write(segmentData)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeConfig points every endpoint at server and the output at a temp dir.
func writeConfig(t *testing.T, server *httptest.Server) (cfgPath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	outDir = filepath.Join(dir, "out")
	cfgPath = filepath.Join(dir, "config.yaml")

	cfg := fmt.Sprintf(`catalog_url: %s/graphql
gameinfo_url: %s/rpc
download_url: %s/downloads
output_dir: %s
catalog_rps: 0
`, server.URL, server.URL, server.URL, outDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))
	return cfgPath, outDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bfg-dl version dev\n", out)
}

func TestRoot_WritesDownloadList(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	out, err := execute(t, "--config", cfg, "F1T1L1", "bogus", "f1t1l1", "F2T1L1")
	require.NoError(t, err)

	assert.Contains(t, out, "bogus")
	assert.Contains(t, out, "Failed to fetch info for F2T1L1")
	assert.Contains(t, out, "42 - Hidden Hunt")

	list, err := os.ReadFile(filepath.Join(outDir, download.ListFile))
	require.NoError(t, err)
	assert.Equal(t, "# 42 - Hidden Hunt\n"+server.URL+"/downloads/f1t1l1/setup.bin\n out=setup.bin\n\n", string(list))
}

func TestRoot_URLListFormat(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	_, err := execute(t, "--config", cfg, "--list-format", "urls", "F1T1L1")
	require.NoError(t, err)

	list, err := os.ReadFile(filepath.Join(outDir, download.ListFile))
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/downloads/f1t1l1/setup.bin\n", string(list))
}

func TestRoot_Download(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	out, err := execute(t, "--config", cfg, "-d", "-j", "2", "F1T1L1")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded 1/1 segments")

	got, err := os.ReadFile(filepath.Join(outDir, download.GamesDir, "42 - Hidden Hunt", "setup.bin"))
	require.NoError(t, err)
	assert.Equal(t, segmentData, got)

	_, err = os.Stat(filepath.Join(outDir, download.ListFile))
	assert.True(t, os.IsNotExist(err), "download mode must not write a list")
}

func TestRoot_ExtractFromInstallers(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	installers := filepath.Join(outDir, InstallersDir)
	require.NoError(t, os.MkdirAll(installers, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installers, "hidden_hunt_l1_gF1T1L1_setup.exe"), nil, 0644))

	out, err := execute(t, "--config", cfg, "-e")
	require.NoError(t, err)
	assert.Contains(t, out, "Processing 1 game(s)")

	_, err = os.Stat(filepath.Join(outDir, download.ListFile))
	require.NoError(t, err)
}

func TestRoot_FromHTML(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body>
<a href="/games/hidden-hunt-f1t1l1">Hidden Hunt</a>
<a href="/games/hidden-hunt-f1t1l1?ref=2">again</a>
</body></html>`), 0644))

	out, err := execute(t, "--config", cfg, "--from-html", page)
	require.NoError(t, err)
	assert.Contains(t, out, "Processing 1 game(s)")

	_, err = os.Stat(filepath.Join(outDir, download.ListFile))
	require.NoError(t, err)
}

func TestRoot_Export(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	out, err := execute(t, "--config", cfg, "--export-installers-json=min", "-j", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Installer JSON export completed.")

	data, err := os.ReadFile(filepath.Join(outDir, export.PartitionFileName("Windows", "L1")))
	require.NoError(t, err)
	var records []export.GameRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "F1T1L1", records[0].WrapID)

	meta, err := os.ReadFile(filepath.Join(outDir, export.MetaFileName("Windows")))
	require.NoError(t, err)
	var report export.Report
	require.NoError(t, json.Unmarshal(meta, &report))
	assert.Equal(t, "min", report.ExportFormat)
	assert.Equal(t, 2, report.TotalWrapIDsFound)
	assert.Equal(t, 1, report.FailedGames)
	assert.Nil(t, report.ExportLimit)
}

func TestRoot_ExportLimit(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	_, err := execute(t, "--config", cfg, "--export-installers-json", "--export-limit", "1")
	require.NoError(t, err)

	meta, err := os.ReadFile(filepath.Join(outDir, export.MetaFileName("Windows")))
	require.NoError(t, err)
	var report export.Report
	require.NoError(t, json.Unmarshal(meta, &report))
	assert.Equal(t, "pretty", report.ExportFormat)
	require.NotNil(t, report.ExportLimit)
	assert.Equal(t, 1, *report.ExportLimit)
	assert.Zero(t, report.FailedGames)
}

func TestRoot_Errors(t *testing.T) {
	server := fakeBigFish(t)
	cfg, _ := writeConfig(t, server)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no ids", []string{"--config", cfg}, "no WrapIDs given"},
		{"only invalid ids", []string{"--config", cfg, "nope"}, "no WrapIDs given"},
		{"no valid games", []string{"--config", cfg, "F2T1L1"}, "no valid games found"},
		{"limit too small", []string{"--config", cfg, "--export-installers-json", "--export-limit", "0"}, "at least 1"},
		{"limit without export", []string{"--config", cfg, "--export-limit", "5"}, "requires --export-installers-json"},
		{"extract and html", []string{"--config", cfg, "-e", "--from-html", "x.html"}, "cannot be combined"},
		{"too many jobs", []string{"--config", cfg, "-j", "100", "F1T1L1"}, "jobs"},
		{"bad platform", []string{"--config", cfg, "-p", "amiga", "F1T1L1"}, "platform"},
		{"bad export format", []string{"--config", cfg, "--export-installers-json=xml"}, "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRoot_ExportAllLanguages(t *testing.T) {
	server := fakeBigFish(t)
	cfg, outDir := writeConfig(t, server)

	_, err := execute(t, "--config", cfg, "--export-installers-json=min", "--all-languages")
	require.NoError(t, err)

	meta, err := os.ReadFile(filepath.Join(outDir, export.MetaFileName("Windows")))
	require.NoError(t, err)
	var report export.Report
	require.NoError(t, json.Unmarshal(meta, &report))

	assert.Len(t, report.PagesParsedByLanguageL, len(strings.Split(languageCodes(), ",")))
	assert.Equal(t, 2, report.TotalWrapIDsFound, "identifiers listed under every language are resolved once")
	assert.Equal(t, 1, report.TotalGamesExported)
}
