package variant

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/httpclient"
	"github.com/Aman-CERP/variomes/internal/textutil"
)

// SynVarService is the service recorded in reports about SynVar.
const SynVarService = "synvar"

// ErrNoVariantList is returned for a SynVar document without a variant list.
var ErrNoVariantList = errors.New("synvar response has no variant-list")

// Fetcher retrieves the raw SynVar document for a gene and variant.
// The alternate shape asks for transcript-level variants without mapping.
type Fetcher interface {
	Fetch(ctx context.Context, gene, variant string, alternate bool) ([]byte, error)
}

// SynVarClient is the HTTP Fetcher.
type SynVarClient struct {
	baseURL string
	client  *httpclient.Client
}

// NewSynVarClient creates a client for the service at baseURL.
func NewSynVarClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *SynVarClient {
	return &SynVarClient{
		baseURL: baseURL,
		client: httpclient.New(httpclient.Config{
			Name:              SynVarService,
			Timeout:           timeout,
			RequestsPerSecond: requestsPerSecond,
		}),
	}
}

// Fetch implements Fetcher.
func (s *SynVarClient) Fetch(ctx context.Context, gene, variant string, alternate bool) ([]byte, error) {
	return s.client.Get(ctx, s.queryURL(gene, variant, alternate))
}

func (s *SynVarClient) queryURL(gene, variant string, alternate bool) string {
	var b strings.Builder
	b.WriteString(s.baseURL)
	b.WriteString("?")
	if alternate {
		b.WriteString("map=false&")
	}
	b.WriteString("ref=")
	b.WriteString(url.QueryEscape(gene))
	b.WriteString("&variant=")
	b.WriteString(url.QueryEscape(variant))
	if alternate {
		b.WriteString("&level=transcript")
	}
	return b.String()
}

type synvarDocument struct {
	VariantList *struct {
		Variants []synvarVariant `xml:"variant"`
	} `xml:"variant-list"`
}

type synvarVariant struct {
	HGVS        *string `xml:"hgvs"`
	RSID        *string `xml:"rsid"`
	Cosmic      *string `xml:"cosmic"`
	GenomeLevel *struct {
		HGVS      *string  `xml:"hgvs"`
		Syntactic []string `xml:"syntactic-variation-list>syntactic-variation"`
	} `xml:"genome-level"`
	Isoforms []struct {
		Transcript *synvarLevel `xml:"transcript-level"`
		Protein    *synvarLevel `xml:"protein-level"`
	} `xml:"isoform-list>isoform"`
}

type synvarLevel struct {
	HGVS      []string `xml:"hgvs-list>hgvs"`
	Syntactic []string `xml:"syntactic-variation-list>syntactic-variation"`
}

// ParseSynVar extracts the synonyms of a SynVar document in document order:
// per variant its hgvs, rsid and cosmic ids, the genome-level forms, then
// the transcript and protein forms of each isoform. Duplicates and empty
// strings are dropped. The count of variant elements is also returned.
func ParseSynVar(data []byte) ([]string, int, error) {
	var doc synvarDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parse synvar response: %w", err)
	}
	if doc.VariantList == nil {
		return nil, 0, ErrNoVariantList
	}

	var synonyms []string
	add := func(s *string) {
		if s != nil {
			synonyms = append(synonyms, strings.TrimSpace(*s))
		}
	}
	addAll := func(list []string) {
		for _, s := range list {
			synonyms = append(synonyms, strings.TrimSpace(s))
		}
	}

	for _, v := range doc.VariantList.Variants {
		add(v.HGVS)
		add(v.RSID)
		add(v.Cosmic)
		if g := v.GenomeLevel; g != nil {
			add(g.HGVS)
			addAll(g.Syntactic)
		}
		for _, iso := range v.Isoforms {
			if tl := iso.Transcript; tl != nil {
				addAll(tl.HGVS)
				addAll(tl.Syntactic)
			}
			if pl := iso.Protein; pl != nil {
				addAll(pl.HGVS)
				addAll(pl.Syntactic)
			}
		}
	}
	return textutil.Unique(synonyms), len(doc.VariantList.Variants), nil
}

// parseWithReports parses data and reports an empty variant list.
func parseWithReports(data []byte, gene, variant string) ([]string, verrors.Reports, error) {
	synonyms, n, err := ParseSynVar(data)
	if err != nil {
		return nil, nil, err
	}
	var reports verrors.Reports
	if n == 0 {
		reports.Warn(SynVarService, "Variant not found at this position in the gene", gene+": "+variant)
	}
	return synonyms, reports, nil
}
