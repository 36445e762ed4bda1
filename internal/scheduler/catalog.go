package scheduler

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"promo-scheduler/internal/promotion"
	"promo-scheduler/internal/targeting"
)

// catalog is the immutable, indexed form of one configuration.
// When campaigns is non-empty selection is two-level and promotions is unused.
type catalog struct {
	promotions []promotion.Promotion
	index      *targeting.Index

	campaigns []promotion.Campaign
	inner     []*targeting.Index // inner[i] indexes campaigns[i].Promotions
}

func newCatalog(cfg promotion.Configuration) catalog {
	if len(cfg.Campaigns) > 0 {
		c := catalog{
			campaigns: cfg.Campaigns,
			index:     targeting.NewIndex(campaignRules(cfg.Campaigns)),
			inner:     make([]*targeting.Index, len(cfg.Campaigns)),
		}
		for i, cp := range cfg.Campaigns {
			c.inner[i] = targeting.NewIndex(promotionRules(cp.Promotions))
		}
		return c
	}
	return catalog{
		promotions: cfg.Promotions,
		index:      targeting.NewIndex(promotionRules(cfg.Promotions)),
	}
}

func (c catalog) size() int {
	if len(c.campaigns) == 0 {
		return len(c.promotions)
	}
	n := 0
	for _, cp := range c.campaigns {
		n += len(cp.Promotions)
	}
	return n
}

func promotionRules(ps []promotion.Promotion) []*promotion.Target {
	out := make([]*promotion.Target, len(ps))
	for i := range ps {
		out[i] = ps[i].Target
	}
	return out
}

func campaignRules(cs []promotion.Campaign) []*promotion.Target {
	out := make([]*promotion.Target, len(cs))
	for i := range cs {
		out[i] = cs[i].Target
	}
	return out
}

// fingerprint hashes the structural content of the catalog. Reset markers and
// the schema version are not part of it.
func fingerprint(cfg promotion.Configuration) (uint64, error) {
	d := xxhash.New()
	err := json.NewEncoder(d).Encode(struct {
		Promotions []promotion.Promotion `json:"promotions"`
		Campaigns  []promotion.Campaign  `json:"campaigns"`
	}{cfg.Promotions, cfg.Campaigns})
	if err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}
