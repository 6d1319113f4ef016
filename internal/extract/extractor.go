// Package extract loads raw transaction lines and dimension tables from the
// supported sources: a directory of per-channel CSV exports, or the POS
// database directly. Extraction asserts nothing about data quality — the
// pipeline's normalization and audit stages own that.
package extract

import (
	"context"
	"strings"

	"ventasbi/internal/model"
)

// Dataset is the raw input handed to the pipeline: transaction lines plus the
// article and channel dimensions.
type Dataset struct {
	Lines    []model.TransactionLine
	Articles []model.ArticleDimension
	Channels []model.ChannelDimension
}

// Extractor produces a Dataset from some source.
type Extractor interface {
	Extract(ctx context.Context) (*Dataset, error)
}

// channelType infers physical vs online from the channel name, following the
// export naming convention (files from the web store carry "ONLINE").
func channelType(code string) model.ChannelType {
	if strings.Contains(strings.ToUpper(code), "ONLINE") {
		return model.ChannelOnline
	}
	return model.ChannelPhysical
}
