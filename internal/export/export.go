package export

import "fmt"

// Build validates the request and produces the artifact for it.
func Build(req Request, in Input) (*Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	base := SanitizeName(in.ProjectName, 64)
	if base == "" {
		base = "timeline"
	}

	switch req.Kind {
	case KindData:
		switch req.Data.Format {
		case FormatJSON:
			body, err := GenerateDocument(in)
			if err != nil {
				return nil, err
			}
			return &Artifact{Filename: base + ".json", ContentType: "application/json", Bytes: body}, nil
		case FormatXML:
			body, err := GenerateFCPXML(in)
			if err != nil {
				return nil, err
			}
			return &Artifact{Filename: base + ".fcpxml", ContentType: "application/xml", Bytes: body}, nil
		case FormatEDL:
			return &Artifact{
				Filename:    base + ".edl",
				ContentType: "text/plain; charset=utf-8",
				Bytes:       []byte(GenerateEDL(in)),
			}, nil
		}

	case KindReport:
		body, err := GenerateReport(in, req.Report.AcceptedSuggestionIDs)
		if err != nil {
			return nil, err
		}
		return &Artifact{Filename: base + "-report.json", ContentType: "application/json", Bytes: body}, nil

	case KindVideo:
		body, err := GenerateRenderManifest(in, *req.Video)
		if err != nil {
			return nil, err
		}
		return &Artifact{Filename: base + "-render.json", ContentType: "application/json", Bytes: body}, nil
	}

	return nil, fmt.Errorf("unknown export kind %q", req.Kind)
}
