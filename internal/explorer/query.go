package explorer

import "encoding/json"

// Primary query shape: requests per-transaction block timestamps inline.
// Some explorer deployments fail to resolve blockTimestamp, hence the
// fallback shape below which requests block numbers only.
const primaryTxQuery = `
query WalletTransactions($address: String!, $first: Int!, $after: String) {
  address(hash: $address) {
    transactions(first: $first, after: $after) {
      edges {
        node {
          hash
          fromAddress
          toAddress
          value
          status
          blockNumber
          blockTimestamp
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

const fallbackTxQuery = `
query WalletTransactionsNoTs($address: String!, $first: Int!, $after: String) {
  address(hash: $address) {
    transactions(first: $first, after: $after) {
      edges {
        node {
          hash
          fromAddress
          toAddress
          value
          status
          blockNumber
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

const blockTimestampQuery = `
query BlockTimestamp($number: Int!) {
  block(number: $number) {
    timestamp
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type txPageData struct {
	Address struct {
		Transactions struct {
			Edges []struct {
				Node txNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"transactions"`
	} `json:"address"`
}

type txNode struct {
	Hash           string `json:"hash"`
	FromAddress    string `json:"fromAddress"`
	ToAddress      string `json:"toAddress"`
	Value          string `json:"value"`
	Status         string `json:"status"`
	BlockNumber    uint64 `json:"blockNumber"`
	BlockTimestamp *int64 `json:"blockTimestamp"`
}

type blockData struct {
	Block *struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"block"`
}
