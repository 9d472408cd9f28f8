package transport

import (
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"formattransformer/internal/jobspec"
	"formattransformer/internal/pipeline"
)

// Field names of the Transform messages.
const (
	fBundleFile    = "bundle_file"
	fSourceFormat  = "source_format"
	fSourcePath    = "source_path"
	fTargetFormat  = "target_format"
	fTargetPath    = "target_path"
	fSourceOptions = "source_options"
	fTargetOptions = "target_options"

	fID       = "id"
	fWritten  = "written"
	fMissing  = "missing"
	fDuration = "duration_ms"
	fFormats  = "formats"
)

// Result is the client-side view of a finished transform.
type Result struct {
	ID       string
	Written  []string
	Missing  []string
	Duration time.Duration
}

func requestToStruct(req jobspec.Request) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fBundleFile:    req.BundleFile,
		fSourceFormat:  req.Source.Format,
		fSourcePath:    req.Source.Path,
		fTargetFormat:  req.Target.Format,
		fTargetPath:    req.Target.Path,
		fSourceOptions: optionsToMap(req.Source.Options),
		fTargetOptions: optionsToMap(req.Target.Options),
	})
}

func requestFromStruct(s *structpb.Struct) (jobspec.Request, error) {
	var req jobspec.Request
	strs := map[string]*string{
		fBundleFile:   &req.BundleFile,
		fSourceFormat: &req.Source.Format,
		fSourcePath:   &req.Source.Path,
		fTargetFormat: &req.Target.Format,
		fTargetPath:   &req.Target.Path,
	}
	for _, k := range sortedFields(s) {
		v := s.GetFields()[k]
		if dst, ok := strs[k]; ok {
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("field %s must be a string", k)
			}
			*dst = sv.StringValue
			continue
		}
		var err error
		switch k {
		case fSourceOptions:
			req.Source.Options, err = optionsFromValue(k, v)
		case fTargetOptions:
			req.Target.Options, err = optionsFromValue(k, v)
		default:
			err = fmt.Errorf("unknown field %s", k)
		}
		if err != nil {
			return req, err
		}
	}
	return req, nil
}

func sortedFields(s *structpb.Struct) []string {
	out := make([]string, 0, len(s.GetFields()))
	for k := range s.GetFields() {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func optionsToMap(opts map[string]string) map[string]any {
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}

func optionsFromValue(field string, v *structpb.Value) (map[string]string, error) {
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	sv := v.GetStructValue()
	if sv == nil {
		return nil, fmt.Errorf("field %s must be a struct", field)
	}
	if len(sv.GetFields()) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(sv.GetFields()))
	for k, ov := range sv.GetFields() {
		s, ok := ov.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%s.%s must be a string", field, k)
		}
		out[k] = s.StringValue
	}
	return out, nil
}

func reportToStruct(rep pipeline.Report) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fID:       rep.ID.String(),
		fWritten:  stringsToList(rep.Written),
		fMissing:  stringsToList(rep.Missing),
		fDuration: float64(rep.Duration.Milliseconds()),
	})
}

func resultFromStruct(s *structpb.Struct) Result {
	f := s.GetFields()
	return Result{
		ID:       f[fID].GetStringValue(),
		Written:  listToStrings(f[fWritten]),
		Missing:  listToStrings(f[fMissing]),
		Duration: time.Duration(f[fDuration].GetNumberValue()) * time.Millisecond,
	}
}

func stringsToList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func listToStrings(v *structpb.Value) []string {
	var out []string
	for _, e := range v.GetListValue().GetValues() {
		out = append(out, e.GetStringValue())
	}
	return out
}
