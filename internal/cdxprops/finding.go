package cdxprops

import (
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/Opener/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

// FindingToComponents converts a scan finding into a file component and, if
// the file has an association, the handler component it depends on.
func FindingToComponents(f model.Finding) ([]cdx.Component, []cdx.Dependency) {
	file := cdx.Component{
		BOMRef:   "file/" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+f.Path)).String(),
		Type:     cdx.ComponentTypeFile,
		Name:     filepath.Base(f.Path),
		MIMEType: f.Mime,
	}
	SetComponentProp(&file, OpenerFileCommand, f.Command)
	if f.Err != nil {
		SetComponentProp(&file, OpenerFileError, f.Err.Error())
	}
	AddEvidenceLocation(&file, f.Path)

	handler, ok := HandlerComponent(f.Command)
	if !ok {
		return []cdx.Component{file}, nil
	}
	deps := []cdx.Dependency{
		{
			Ref:          file.BOMRef,
			Dependencies: &[]string{handler.BOMRef},
		},
	}
	return []cdx.Component{file, handler}, deps
}

// HandlerComponent returns an application component for the program started by
// a command template. Templates starting with the file itself or with shell
// syntax have no handler.
func HandlerComponent(command string) (cdx.Component, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return cdx.Component{}, false
	}
	name := fields[0]
	if strings.ContainsAny(name, "{}$=\"'`;|&<>()\\") {
		return cdx.Component{}, false
	}
	compo := cdx.Component{
		BOMRef: "handler/" + filepath.Base(name),
		Type:   cdx.ComponentTypeApplication,
		Name:   filepath.Base(name),
	}
	SetComponentProp(&compo, OpenerHandlerCommand, name)
	return compo, true
}
