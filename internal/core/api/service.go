// Package api provides the gRPC discovery rule API.
package api

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/netkeeper/internal/core/auth"
	"github.com/solatis/netkeeper/internal/core/config"
	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/types"
)

// DRuleService implements DRuleServer.
// Thin orchestration layer decoding requests and delegating to drules.
type DRuleService struct {
	rules  *drules.Service
	cfg    config.APIConfig
	logger zerolog.Logger
}

var _ DRuleServer = (*DRuleService)(nil)

// NewDRuleService creates service instance with dependencies.
func NewDRuleService(rules *drules.Service, cfg config.APIConfig, logger zerolog.Logger) (*DRuleService, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules cannot be nil")
	}
	return &DRuleService{
		rules:  rules,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}, nil
}

// begin bounds the request by the configured timeout and resolves the
// authenticated actor.
func (s *DRuleService) begin(ctx context.Context) (context.Context, context.CancelFunc, types.Actor, error) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return ctx, func() {}, types.Actor{}, status.Error(codes.Internal, "missing actor in context")
	}
	if s.cfg.RequestTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		return ctx, cancel, actor, nil
	}
	return ctx, func() {}, actor, nil
}

func (s *DRuleService) fail(method string, actor types.Actor, err error) error {
	ev := s.logger.Debug()
	if types.KindOf(err) == 0 {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("method", method).Str("actor", actor.ID).Msg("request failed")
	return statusOf(err)
}

// Get returns rules matching the request options.
func (s *DRuleService) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel, actor, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	opts, err := getOptions(req.AsMap())
	if err != nil {
		return nil, s.fail("Get", actor, err)
	}
	res, err := s.rules.Get(ctx, actor, opts)
	if err != nil {
		return nil, s.fail("Get", actor, err)
	}

	if opts.CountOutput {
		return response(map[string]any{paramResult: res.Count})
	}
	return response(map[string]any{paramResult: renderRules(res.Rules, opts)})
}

// Create inserts a batch of rules with their checks.
func (s *DRuleService) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel, actor, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	objs, err := records(req.AsMap(), s.cfg.MaxBatchSize)
	if err != nil {
		return nil, s.fail("Create", actor, err)
	}
	ids, err := s.rules.Create(ctx, actor, objs)
	if err != nil {
		return nil, s.fail("Create", actor, err)
	}
	return response(map[string]any{paramRuleIDs: idValues(ids)})
}

// Update applies a batch of partial rule updates.
func (s *DRuleService) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel, actor, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	objs, err := records(req.AsMap(), s.cfg.MaxBatchSize)
	if err != nil {
		return nil, s.fail("Update", actor, err)
	}
	ids, err := s.rules.Update(ctx, actor, objs)
	if err != nil {
		return nil, s.fail("Update", actor, err)
	}
	return response(map[string]any{paramRuleIDs: idValues(ids)})
}

// Delete removes rules and everything that references them.
func (s *DRuleService) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel, actor, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	ids, err := idList[types.RuleID](req.AsMap()[paramRuleIDs], s.cfg.MaxBatchSize)
	if err != nil {
		return nil, s.fail("Delete", actor, err)
	}
	deleted, err := s.rules.Delete(ctx, actor, ids)
	if err != nil {
		return nil, s.fail("Delete", actor, err)
	}
	return response(map[string]any{paramRuleIDs: idValues(deleted)})
}

// IsReadable reports whether every id names a rule the actor can see.
func (s *DRuleService) IsReadable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.visibility(ctx, req, "IsReadable", s.rules.IsReadable)
}

// IsWritable reports whether every id names a rule the actor can modify.
func (s *DRuleService) IsWritable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.visibility(ctx, req, "IsWritable", s.rules.IsWritable)
}

func (s *DRuleService) visibility(ctx context.Context, req *structpb.Struct, method string,
	check func(context.Context, types.Actor, []types.RuleID) (bool, error)) (*structpb.Struct, error) {
	ctx, cancel, actor, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	ids, err := idList[types.RuleID](req.AsMap()[paramIDs], 0)
	if err != nil {
		return nil, s.fail(method, actor, err)
	}
	ok, err := check(ctx, actor, ids)
	if err != nil {
		return nil, s.fail(method, actor, err)
	}
	return response(map[string]any{paramResult: ok})
}
