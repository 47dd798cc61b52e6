package cdxprops_test

import (
	"fmt"
	"testing"

	"github.com/CZERTAINLY/Opener/internal/cdxprops"
	"github.com/CZERTAINLY/Opener/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func TestFindingToComponents(t *testing.T) {
	t.Parallel()

	compos, deps := cdxprops.FindingToComponents(model.Finding{
		Path:    "/music/song.flac",
		Mime:    "audio/flac",
		Command: "/usr/bin/mpv --no-video {file}",
	})
	require.Len(t, compos, 2)
	file, handler := compos[0], compos[1]

	require.Equal(t, cdx.ComponentTypeFile, file.Type)
	require.Equal(t, "song.flac", file.Name)
	require.Equal(t, "audio/flac", file.MIMEType)
	require.Contains(t, file.BOMRef, "file/")
	require.Equal(t, []cdx.Property{
		{Name: cdxprops.OpenerFileCommand, Value: "/usr/bin/mpv --no-video {file}"},
	}, *file.Properties)
	require.Equal(t, "/music/song.flac", (*file.Evidence.Occurrences)[0].Location)

	require.Equal(t, cdx.ComponentTypeApplication, handler.Type)
	require.Equal(t, "mpv", handler.Name)
	require.Equal(t, "handler/mpv", handler.BOMRef)

	require.Equal(t, []cdx.Dependency{
		{Ref: file.BOMRef, Dependencies: &[]string{"handler/mpv"}},
	}, deps)

	// the reference depends on the path only
	again, _ := cdxprops.FindingToComponents(model.Finding{Path: "/music/song.flac"})
	require.Equal(t, file.BOMRef, again[0].BOMRef)
}

func TestFindingToComponents_Error(t *testing.T) {
	t.Parallel()

	compos, deps := cdxprops.FindingToComponents(model.Finding{
		Path: "/tmp/blob",
		Mime: model.MimeOctetStream,
		Err:  fmt.Errorf("%w: %s", model.ErrNoAssociation, model.MimeOctetStream),
	})
	require.Len(t, compos, 1)
	require.Nil(t, deps)
	require.Equal(t, []cdx.Property{
		{Name: cdxprops.OpenerFileError, Value: "no association: application/octet-stream"},
	}, *compos[0].Properties)
}

func TestHandlerComponent(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		command string
		then    string
		ok      bool
	}{
		{"mpv {file}", "mpv", true},
		{"/usr/local/bin/zathura {file}", "zathura", true},
		{"{file}", "", false},
		{"FOO=1 mpv {file}", "", false},
		{"", "", false},
	}
	for _, tt := range testCases {
		t.Run(tt.command, func(t *testing.T) {
			compo, ok := cdxprops.HandlerComponent(tt.command)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.then, compo.Name)
		})
	}
}
