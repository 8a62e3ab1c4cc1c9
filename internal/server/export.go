package server

import (
	"context"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

// ExportContracts returns the XLSX workbook for every contract, optionally
// restricted to one status.
func (s *ContractService) ExportContracts(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	st, err := stringField(req, "status")
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	st = strings.ToLower(strings.TrimSpace(st))
	if err := common.NewValidator().Field("status", st, common.OneOf(constants.StatusStrings()...)).Error(); err != nil {
		return nil, common.GRPCStatus(err)
	}

	xlsx, n, err := s.deps.Exporter.ContractsXLSX(ctx, repository.ListFilter{
		Status: constants.ContractStatus(st),
		SortBy: repository.SortUploadedAt,
		Order:  "asc",
	})
	if err != nil {
		s.logger.Error("export.xlsx.failed", "status", st, "error", err)
		return nil, common.InternalError(err.Error())
	}
	s.logger.Info("export.xlsx.sent", "rows", n, "bytes", len(xlsx))
	return wrapperspb.Bytes(xlsx), nil
}
