package api

import (
	"StockAgent/internal/domain"
)

// Response payloads mirror the stored schema; timestamps are serialized
// as text for the dashboard.

type contentResponse struct {
	ID             int64    `json:"id"`
	ExternalID     string   `json:"external_id"`
	SourceName     string   `json:"source_name"`
	Title          string   `json:"title"`
	AnalysisBody   string   `json:"analysis_content"`
	SentimentScore int      `json:"sentiment_score"`
	Platform       string   `json:"platform"`
	SourceURL      string   `json:"source_url"`
	Tickers        []string `json:"tickers"`
	CreatedAt      string   `json:"created_at"`
}

type sourceResponse struct {
	ID         int64  `json:"id"`
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
}

type summaryResponse struct {
	ID         int64  `json:"id"`
	ReportDate string `json:"report_date"`
	BuyStock   string `json:"buy_stock"`
	BuyReason  string `json:"buy_reason"`
	SellStock  string `json:"sell_stock"`
	SellReason string `json:"sell_reason"`
}

func toContentResponse(item domain.ContentItem) contentResponse {
	tickers := item.Tickers
	if tickers == nil {
		tickers = []string{}
	}
	return contentResponse{
		ID:             item.ID,
		ExternalID:     item.ExternalID,
		SourceName:     item.SourceName,
		Title:          item.Title,
		AnalysisBody:   item.AnalysisBody,
		SentimentScore: item.SentimentScore,
		Platform:       string(item.Platform),
		SourceURL:      item.SourceURL,
		Tickers:        tickers,
		CreatedAt:      item.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toSourceResponse(src domain.Source) sourceResponse {
	return sourceResponse{
		ID:         src.ID,
		Platform:   string(src.Platform),
		Identifier: src.Identifier,
		Name:       src.Name,
		IsActive:   src.Active,
	}
}

func toSummaryResponse(summary domain.DailySummary) summaryResponse {
	return summaryResponse{
		ID:         summary.ID,
		ReportDate: summary.ReportDate.Format("2006-01-02"),
		BuyStock:   summary.BuyStock,
		BuyReason:  summary.BuyReason,
		SellStock:  summary.SellStock,
		SellReason: summary.SellReason,
	}
}
