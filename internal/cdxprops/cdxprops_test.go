package cdxprops_test

import (
	"testing"

	"github.com/CZERTAINLY/Opener/internal/cdxprops"
	"github.com/CZERTAINLY/Opener/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func TestSetComponentProp(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    model.Finding
		name     string
		value    string
		then     []cdx.Property
	}{
		{
			scenario: "error added next to the command",
			given:    model.Finding{Path: "/music/a.flac", Mime: "audio/flac", Command: "mpv {file}"},
			name:     cdxprops.OpenerFileError,
			value:    "launch failed",
			then: []cdx.Property{
				{Name: cdxprops.OpenerFileCommand, Value: "mpv {file}"},
				{Name: cdxprops.OpenerFileError, Value: "launch failed"},
			},
		},
		{
			scenario: "command replaced in place",
			given:    model.Finding{Path: "/music/a.flac", Mime: "audio/flac", Command: "mpv {file}"},
			name:     cdxprops.OpenerFileCommand,
			value:    "vlc {file}",
			then: []cdx.Property{
				{Name: cdxprops.OpenerFileCommand, Value: "vlc {file}"},
			},
		},
		{
			scenario: "error replaced in place",
			given:    model.Finding{Path: "/tmp/blob", Mime: model.MimeOctetStream, Err: model.ErrNoAssociation},
			name:     cdxprops.OpenerFileError,
			value:    "file too big",
			then: []cdx.Property{
				{Name: cdxprops.OpenerFileError, Value: "file too big"},
			},
		},
		{
			scenario: "empty value keeps the command",
			given:    model.Finding{Path: "/music/a.flac", Mime: "audio/flac", Command: "mpv {file}"},
			name:     cdxprops.OpenerFileCommand,
			value:    "",
			then: []cdx.Property{
				{Name: cdxprops.OpenerFileCommand, Value: "mpv {file}"},
			},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			compos, _ := cdxprops.FindingToComponents(tt.given)
			file := compos[0]
			cdxprops.SetComponentProp(&file, tt.name, tt.value)
			require.Equal(t, tt.then, *file.Properties)
		})
	}
}

func TestSetComponentProp_EmptyOnBareComponent(t *testing.T) {
	t.Parallel()
	compos, _ := cdxprops.FindingToComponents(model.Finding{Path: "/tmp/unknown"})
	require.Nil(t, compos[0].Properties)

	cdxprops.SetComponentProp(&compos[0], cdxprops.OpenerFileError, "")
	require.Nil(t, compos[0].Properties)
}

func TestAddEvidenceLocation(t *testing.T) {
	t.Parallel()

	compos, _ := cdxprops.FindingToComponents(model.Finding{Path: "/music/a.flac", Mime: "audio/flac"})
	file := compos[0]
	require.Equal(t, []cdx.EvidenceOccurrence{{Location: "/music/a.flac"}}, *file.Evidence.Occurrences)

	// the same path seen by a second scan root
	cdxprops.AddEvidenceLocation(&file, "/music/a.flac")
	cdxprops.AddEvidenceLocation(&file, "")
	require.Equal(t, []cdx.EvidenceOccurrence{{Location: "/music/a.flac"}}, *file.Evidence.Occurrences)

	cdxprops.AddEvidenceLocation(&file, "/backup/music/a.flac")
	require.Equal(t, []cdx.EvidenceOccurrence{
		{Location: "/music/a.flac"},
		{Location: "/backup/music/a.flac"},
	}, *file.Evidence.Occurrences)

	var bare cdx.Component
	cdxprops.AddEvidenceLocation(&bare, "")
	require.Nil(t, bare.Evidence)
}
