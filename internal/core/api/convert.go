package api

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
)

// Request and response field names.
const (
	paramRules        = "drules"
	paramRuleIDs      = "druleids"
	paramHostIDs      = "dhostids"
	paramIDs          = "ids"
	paramFilter       = "filter"
	paramSearch       = "search"
	paramEditable     = "editable"
	paramSelectChecks = "selectDChecks"
	paramSelectHosts  = "selectDHosts"
	paramSortField    = "sortfield"
	paramSortOrder    = "sortorder"
	paramLimit        = "limit"
	paramLimitSelects = "limitSelects"
	paramCountOutput  = "countOutput"
	paramResult       = "result"

	fieldHosts = "dhosts"
)

// records extracts the rule list of a Create or Update request.
func records(req map[string]any, maxBatch int) ([]types.Object, error) {
	objs, err := payload.Objects(req[paramRules])
	if err != nil {
		return nil, types.ErrIncorrectArguments
	}
	if maxBatch > 0 && len(objs) > maxBatch {
		return nil, types.ParameterError(types.MsgBatchTooLarge, maxBatch)
	}
	return objs, nil
}

// stringList accepts a single scalar or a list of scalars.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil || payload.IsComposite(item) {
				return nil, types.ErrIncorrectArguments
			}
			out = append(out, payload.Canonical(item))
		}
		return out, nil
	default:
		if payload.IsComposite(v) {
			return nil, types.ErrIncorrectArguments
		}
		return []string{payload.Canonical(v)}, nil
	}
}

func idList[T ~string](v any, maxBatch int) ([]T, error) {
	raw, err := stringList(v)
	if err != nil {
		return nil, err
	}
	if maxBatch > 0 && len(raw) > maxBatch {
		return nil, types.ParameterError(types.MsgBatchTooLarge, maxBatch)
	}
	ids := make([]T, len(raw))
	for i, s := range raw {
		ids[i] = T(s)
	}
	return ids, nil
}

// flag reads a boolean option. Numbers and strings count as set unless
// blank or zero.
func flag(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return !payload.IsBlank(v) && payload.Canonical(v) != "0"
}

func count(param string, v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	n, err := payload.Int(v)
	if err != nil || n < 0 {
		return 0, types.ParameterError(types.MsgUnknownOutputMode, payload.Canonical(v), param)
	}
	return int(n), nil
}

// getOptions decodes a Get request.
func getOptions(req map[string]any) (drules.GetOptions, error) {
	var opts drules.GetOptions
	var err error

	if opts.RuleIDs, err = idList[types.RuleID](req[paramRuleIDs], 0); err != nil {
		return opts, err
	}
	if opts.HostIDs, err = idList[types.HostID](req[paramHostIDs], 0); err != nil {
		return opts, err
	}

	if raw, ok := req[paramFilter]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return opts, types.ErrIncorrectArguments
		}
		opts.Filter = make(map[string][]string, len(m))
		for k, v := range m {
			values, err := stringList(v)
			if err != nil {
				return opts, err
			}
			opts.Filter[k] = values
		}
	}

	switch s := req[paramSearch].(type) {
	case nil:
	case string:
		opts.Search = s
	case map[string]any:
		name, err := payload.Text(s[types.FieldName])
		if err != nil {
			return opts, types.ErrIncorrectArguments
		}
		opts.Search = name
	default:
		return opts, types.ErrIncorrectArguments
	}

	opts.Editable = flag(req[paramEditable])
	opts.CountOutput = flag(req[paramCountOutput])

	if opts.SelectChecks, err = outputMode(paramSelectChecks, req[paramSelectChecks]); err != nil {
		return opts, err
	}
	if opts.SelectHosts, err = outputMode(paramSelectHosts, req[paramSelectHosts]); err != nil {
		return opts, err
	}

	if opts.SortField, err = payload.Text(req[paramSortField]); err != nil {
		return opts, types.ErrIncorrectArguments
	}
	if opts.SortOrder, err = payload.Text(req[paramSortOrder]); err != nil {
		return opts, types.ErrIncorrectArguments
	}
	if opts.Limit, err = count(paramLimit, req[paramLimit]); err != nil {
		return opts, err
	}
	if opts.LimitSelects, err = count(paramLimitSelects, req[paramLimitSelects]); err != nil {
		return opts, err
	}
	return opts, nil
}

func outputMode(param string, v any) (drules.OutputMode, error) {
	s, err := payload.Text(v)
	if err != nil {
		return drules.OutputNone, types.ErrIncorrectArguments
	}
	return drules.ParseOutputMode(param, s)
}

// renderRules converts Get results into response values.
func renderRules(views []drules.RuleView, opts drules.GetOptions) []any {
	out := make([]any, len(views))
	for i, v := range views {
		m := map[string]any(v.Rule.Object())

		switch opts.SelectChecks {
		case drules.OutputExtend:
			checks := make([]any, len(v.Checks))
			for j, c := range v.Checks {
				checks[j] = map[string]any(c.Object())
			}
			m[types.FieldChecks] = checks
		case drules.OutputCount:
			m[types.FieldChecks] = v.CheckCount
		}

		switch opts.SelectHosts {
		case drules.OutputExtend:
			hosts := make([]any, len(v.Hosts))
			for j, h := range v.Hosts {
				hosts[j] = map[string]any{
					"dhostid":  string(h.ID),
					"druleid":  string(h.RuleID),
					"status":   h.Status,
					"lastup":   h.LastUp,
					"lastdown": h.LastDown,
				}
			}
			m[fieldHosts] = hosts
		case drules.OutputCount:
			m[fieldHosts] = v.HostCount
		}

		out[i] = m
	}
	return out
}

func idValues[T ~string](ids []T) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func response(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return s, nil
}
