package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/gwatts/macapps"
)

const exportXML = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<array>
	<dict>
		<key>_items</key>
		<array>
			<dict>
				<key>_name</key>
				<string>Safari</string>
				<key>arch_kind</key>
				<string>arch_arm_i64</string>
				<key>lastModified</key>
				<date>2024-01-02T03:04:05Z</date>
				<key>obtained_from</key>
				<string>apple</string>
				<key>version</key>
				<string>17.1</string>
			</dict>
			<dict>
				<key>_name</key>
				<string>Acme</string>
				<key>obtained_from</key>
				<string>identified_developer</string>
				<key>signed_by</key>
				<array>
					<string>Developer ID Application: Acme Inc</string>
				</array>
				<key>version</key>
				<string>2.0</string>
			</dict>
		</array>
	</dict>
</array>
</plist>
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envFormat, envProfiler, envStrict} {
		t.Setenv(k, "")
	}
	// keep godotenv away from any .env in the package directory
	t.Chdir(t.TempDir())
}

func writeExport(t *testing.T) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "apps.xml")
	require.NoError(t, os.WriteFile(fn, []byte(exportXML), 0644))
	return fn
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func sampleApps() []macapps.AppRecord {
	return []macapps.AppRecord{
		{
			Name:           "Safari",
			Version:        "17.1",
			Vendor:         "Apple",
			LastModified:   1704164645,
			AdditionalInfo: macapps.NewDict(macapps.InfoLocation, "/Applications/Safari.app", macapps.InfoKind, "arch_arm_i64"),
		},
	}
}

func TestListText(t *testing.T) {
	clearEnv(t)
	out, _, err := execute(t, "", "--input", writeExport(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "Safari")
	assert.Contains(t, lines[1], "2024-01-02 03:04")
	assert.Contains(t, lines[2], "Acme Inc")
	assert.Contains(t, lines[2], " - ")
}

func TestListJSONFromStdin(t *testing.T) {
	clearEnv(t)
	out, _, err := execute(t, exportXML, "-i", "-", "-f", "json")
	require.NoError(t, err)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Safari", got[0]["name"])
	assert.Equal(t, "Acme Inc", got[1]["vendor"])
	assert.Equal(t, float64(1704164645), got[0]["lastModified"])
}

func TestFormatEnvDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv(envFormat, "yaml")
	fn := writeExport(t)

	out, _, err := execute(t, "", "--input", fn)
	require.NoError(t, err)
	assert.Contains(t, out, "- name: Safari")

	// flags win over the environment
	out, _, err = execute(t, "", "--input", fn, "--format", "json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["))
}

func TestInvalidConfig(t *testing.T) {
	clearEnv(t)
	_, _, err := execute(t, "", "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	t.Setenv(envStrict, "maybe")
	_, _, err = execute(t, "")
	assert.ErrorContains(t, err, envStrict)

	t.Setenv(envStrict, "")
	_, _, err = execute(t, "", "extra")
	assert.Error(t, err)
}

func TestMissingInput(t *testing.T) {
	clearEnv(t)
	_, _, err := execute(t, "", "--input", filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestStrictEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envStrict, "true")
	bad := `<plist><dict><key>_items</key><array><dict><key>_name</key><string>A & B</string></dict></array></dict></plist>`

	out, _, err := execute(t, bad, "-i", "-", "-f", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, _, err = execute(t, bad, "-i", "-", "-f", "json", "--strict=false")
	require.NoError(t, err)
	assert.Contains(t, out, "A & B")
}

func TestDebugZip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, stderr, err := execute(t, "", "--input", writeExport(t), "--debug-zip="+dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Debug information written to")
	assert.FileExists(t, filepath.Join(dir, macapps.DebugZipName))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, macapps.LevelTrace, logLevel(config{trace: true, verbose: true}))
	assert.Equal(t, slog.LevelDebug, logLevel(config{verbose: true}))
	assert.Equal(t, slog.LevelWarn, logLevel(config{}))
}

func TestWriteJSONKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatJSON, sampleApps()))
	out := buf.String()
	assert.Less(t, strings.Index(out, `"Location"`), strings.Index(out, `"Kind"`))
}

func TestWriteYAMLKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatYAML, sampleApps()))

	var got []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Apple", got[0]["vendor"])
	out := buf.String()
	assert.Less(t, strings.Index(out, "Location:"), strings.Index(out, "Kind:"))
	assert.Contains(t, out, "lastModified: 1704164645")
}

func TestWritePlist(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatPlist, sampleApps()))

	var got []map[string]interface{}
	_, err := plist.Unmarshal(buf.Bytes(), &got)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Safari", got[0]["name"])
	info, ok := got[0]["additionalInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "arch_arm_i64", info["Kind"])
}

func TestWritePrettyAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatPretty, sampleApps()))
	assert.Contains(t, buf.String(), "Safari")

	buf.Reset()
	require.NoError(t, writeRecords(&buf, formatJSON, []macapps.AppRecord{}))
	assert.JSONEq(t, "[]", buf.String())

	assert.Error(t, writeRecords(&buf, "xml", nil))
}
