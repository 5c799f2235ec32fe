package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gotidy/ptr"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

var queryFlags struct {
	start       string
	end         string
	filename    string
	contentType string
	statuses    []string
	sort        string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query assets and print them as JSON",
	Example: "  simple-asset query --filename report --sort ASC\n" +
		"  simple-asset query --status PENDING --end 2024-06-01T00:00:00Z",
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.start, "start", "", "inclusive lower bound on upload date (RFC 3339)")
	f.StringVar(&queryFlags.end, "end", "", "inclusive upper bound on upload date (RFC 3339)")
	f.StringVar(&queryFlags.filename, "filename", "", "case-insensitive filename substring")
	f.StringVar(&queryFlags.contentType, "content-type", "", "case-insensitive content type")
	f.StringSliceVar(&queryFlags.statuses, "status", nil, "status to include (repeatable)")
	f.StringVar(&queryFlags.sort, "sort", "DESC", "upload date order, ASC or DESC")
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter := simpleasset.AssetFilter{
		SortDirection: simpleasset.ParseSortDirection(queryFlags.sort),
	}

	if queryFlags.start != "" {
		t, err := time.Parse(time.RFC3339, queryFlags.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		filter.UploadDateStart = &t
	}
	if queryFlags.end != "" {
		t, err := time.Parse(time.RFC3339, queryFlags.end)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		filter.UploadDateEnd = &t
	}
	if queryFlags.filename != "" {
		filter.Filename = ptr.String(queryFlags.filename)
	}
	if queryFlags.contentType != "" {
		filter.ContentType = ptr.String(queryFlags.contentType)
	}
	for _, s := range queryFlags.statuses {
		st, err := simpleasset.ParseAssetStatus(s)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	rt, err := serverConfig.Build(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	assets, err := rt.Service.FindByFilter(cmd.Context(), filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(assets)
}
