package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// DefaultListingURL is the KRX corporate listing download (all markets).
const DefaultListingURL = "https://kind.krx.co.kr/corpgeneral/corpList.do?method=download&searchType=13"

// Listing header names.
const (
	listingNameHeader = "회사명"
	listingCodeHeader = "종목코드"
)

// KRX resolves company names against the KRX corporate listing.
type KRX struct {
	fetcher    *Fetcher
	listingURL string
	log        *logrus.Entry
}

// NewKRX creates a resolver. An empty listingURL selects DefaultListingURL.
func NewKRX(f *Fetcher, listingURL string, log *logrus.Entry) *KRX {
	if listingURL == "" {
		listingURL = DefaultListingURL
	}
	if log == nil {
		log = f.log
	}
	return &KRX{fetcher: f, listingURL: listingURL, log: log}
}

// Name returns the data source name.
func (k *KRX) Name() string { return "KRX listing" }

// Resolve maps a free-text company name to a listed security.
// Exact (case-insensitive, trimmed) name matches win over substring matches;
// within a tier the first row in listing order wins.
//
// The only error is ErrTickerNotFound: an empty query, no match, or a listing
// that could not be fetched or parsed all resolve to "not found".
func (k *KRX) Resolve(ctx context.Context, query string) (models.SecurityIdentity, error) {
	if utils.NormalizeQuery(query) == "" {
		return models.SecurityIdentity{}, ErrTickerNotFound
	}

	listing, err := k.Listing(ctx)
	if err != nil {
		k.log.WithError(err).WithField("query", query).Warn("listing unavailable; treating as not found")
		return models.SecurityIdentity{}, fmt.Errorf("%w: %s", ErrTickerNotFound, strings.TrimSpace(query))
	}

	sec, ok := MatchListing(listing, query)
	if !ok {
		k.log.WithField("query", query).Info("no listed security matches")
		return models.SecurityIdentity{}, fmt.Errorf("%w: %s", ErrTickerNotFound, strings.TrimSpace(query))
	}
	k.log.WithFields(logrus.Fields{"query": query, "code": sec.Code}).Debug("resolved")
	return sec, nil
}

// Listing downloads and parses the full listing.
func (k *KRX) Listing(ctx context.Context) ([]models.SecurityIdentity, error) {
	doc, err := k.fetcher.Document(ctx, DocListing, k.listingURL)
	if err != nil {
		return nil, err
	}
	return parseListing(doc)
}

// MatchListing applies the two-tier name match to an already loaded listing.
func MatchListing(listing []models.SecurityIdentity, query string) (models.SecurityIdentity, bool) {
	q := utils.NormalizeQuery(query)
	if q == "" {
		return models.SecurityIdentity{}, false
	}

	for _, sec := range listing {
		if utils.NormalizeQuery(sec.Name) == q {
			return sec, true
		}
	}
	// TODO: the substring tier depends on the upstream row order; rank by
	// name length or market cap once there is an agreed tie-break.
	for _, sec := range listing {
		if strings.Contains(utils.NormalizeQuery(sec.Name), q) {
			return sec, true
		}
	}
	return models.SecurityIdentity{}, false
}

// parseListing reads the listing table. Columns are located by header name
// since the download has gained columns over time.
func parseListing(doc *goquery.Document) ([]models.SecurityIdentity, error) {
	nameCol, codeCol := -1, -1
	var listing []models.SecurityIdentity

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if nameCol < 0 || codeCol < 0 {
			cells.Each(func(i int, cell *goquery.Selection) {
				switch utils.CleanText(cell.Text()) {
				case listingNameHeader:
					nameCol = i
				case listingCodeHeader:
					codeCol = i
				}
			})
			return
		}

		if cells.Length() <= nameCol || cells.Length() <= codeCol {
			return
		}
		name := strings.TrimSpace(cells.Eq(nameCol).Text())
		code := utils.CleanText(cells.Eq(codeCol).Text())
		if name == "" || code == "" {
			return
		}
		listing = append(listing, models.SecurityIdentity{
			Name: name,
			Code: utils.NormalizeCode(code),
		})
	})

	if nameCol < 0 || codeCol < 0 {
		return nil, fmt.Errorf("listing: header columns %q/%q not found", listingNameHeader, listingCodeHeader)
	}
	return listing, nil
}
