package server

import (
	"context"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
)

// IngestPath ingests one PDF already on the server's disk and queues it.
func (s *ContractService) IngestPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := stringField(req, "path")
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		s.logger.Error("ingest request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}

	s.logger.Info("starting file ingest", "path", path)
	r, err := s.deps.Ingestor.IngestPath(ctx, path)
	if err != nil {
		s.logger.Error("file ingest failed", "path", path, "error", err)
		return nil, common.GRPCStatus(err)
	}
	s.logger.Info("file ingest succeeded", "contract_id", r.ContractID, "deduplicated", r.Deduplicated, "queued", r.Queued)
	return toStruct(r)
}

// IngestDirectory ingests every PDF under root_path. skip_hidden defaults
// to true. Per-file failures are reported in results.
func (s *ContractService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	root, err := stringField(req, "root_path")
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		s.logger.Error("ingest directory request missing root_path")
		return nil, common.InvalidArgumentError("root_path is required")
	}
	skipHidden, err := boolField(req, "skip_hidden", true)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}

	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.deps.Ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	s.logger.Info("directory ingest completed",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if results == nil {
		results = []ingest.Result{}
	}
	return toStruct(map[string]any{"stats": stats, "results": results})
}
