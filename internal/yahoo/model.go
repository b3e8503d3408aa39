package yahoo

// chartResponse represents the raw JSON response structure from the Yahoo
// Finance chart API. It maps directly to the API response format, containing
// nested structures for metadata, timestamps, price indicators, and corporate
// events.
//
// The structure includes:
//   - Chart.Result: Array of result objects (typically contains one element)
//   - Chart.Result[].Meta: Symbol metadata (name, currency, exchange)
//   - Chart.Result[].Timestamp: Unix timestamps for each data point
//   - Chart.Result[].Indicators: Price data arrays (open, close, high, low, volume)
//   - Chart.Result[].Events.Dividends: Dividend distributions keyed by timestamp
//   - Chart.Error: Optional error message from the Yahoo API
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency         string `json:"currency"`
				Symbol           string `json:"symbol"`
				ExchangeName     string `json:"exchangeName"`
				FullExchangeName string `json:"fullExchangeName"`
				LongName         string `json:"longName"`
				Shortname        string `json:"shortName"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
			Events    struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// timeseriesValue is one reported quarterly figure from the
// fundamentals-timeseries API.
type timeseriesValue struct {
	AsOfDate      string `json:"asOfDate"`
	ReportedValue struct {
		Raw float64 `json:"raw"`
	} `json:"reportedValue"`
}

// timeseriesResponse represents the raw JSON response from the Yahoo
// fundamentals-timeseries API. Each result element carries exactly one of
// the requested series; the others stay nil.
type timeseriesResponse struct {
	Timeseries struct {
		Result []struct {
			Meta struct {
				Symbol []string `json:"symbol"`
				Type   []string `json:"type"`
			} `json:"meta"`
			QuarterlyNetIncome          []timeseriesValue `json:"quarterlyNetIncome"`
			QuarterlyTotalRevenue       []timeseriesValue `json:"quarterlyTotalRevenue"`
			QuarterlyOperatingIncome    []timeseriesValue `json:"quarterlyOperatingIncome"`
			QuarterlyStockholdersEquity []timeseriesValue `json:"quarterlyStockholdersEquity"`
			QuarterlyTotalDebt          []timeseriesValue `json:"quarterlyTotalDebt"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"timeseries"`
}

// quoteSummaryResponse represents the raw JSON response from the Yahoo
// quoteSummary API for the assetProfile, defaultKeyStatistics, and quoteType
// modules.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
			DefaultKeyStatistics struct {
				SharesOutstanding struct {
					Raw *float64 `json:"raw"`
				} `json:"sharesOutstanding"`
			} `json:"defaultKeyStatistics"`
			QuoteType struct {
				ShortName string `json:"shortName"`
			} `json:"quoteType"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// CompanyProfile is the slow-changing metadata for one symbol: sector and
// industry classification, display name, and shares outstanding.
type CompanyProfile struct {
	Sector            string
	Industry          string
	ShortName         string
	SharesOutstanding *float64
}
