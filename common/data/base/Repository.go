package base

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/olivere/elastic.v5"

	"github.com/iqoption/crashcollector/common/format/minidump"
)

const crashType = "crash"

// Repository indexes collected crashes in Elasticsearch. The cache, when set,
// keeps report id -> JSON so lookups of recent crashes skip the index.
type Repository struct {
	db    *elastic.Client
	index string
	cache Cashe
}

func (r *Repository) putInCache(report *minidump.Report) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		log.WithError(err).Warning("Can't serialize report for cache")
		return
	}
	err = r.cache.Set(reportKey(report.Id), string(data))
	if err != nil {
		log.WithError(err).Warning("Can't put report in cache")
	}
}

func (r *Repository) getFromCache(id string) *minidump.Report {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(reportKey(id))
	if err != nil {
		if err != ErrNotCached {
			log.WithError(err).Warning("Can't read report from cache")
		}
		return nil
	}
	var report minidump.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		log.WithError(err).Warning("Can't parse cached report")
		return nil
	}
	return &report
}

func (r *Repository) AddReport(ctx context.Context, report *minidump.Report) error {
	_, err := r.db.
		Index().
		Index(r.index).
		Type(crashType).
		Id(report.Id).
		BodyJson(report).
		Refresh("true").
		Do(ctx)

	if err != nil {
		log.WithFields(log.Fields{
			"id":    report.Id,
			"error": err,
		}).Error("Can't insert crash report")
		return errors.Wrap(err, 0)
	}

	r.putInCache(report)
	return nil
}

func (r *Repository) GetReport(ctx context.Context, id string) (*minidump.Report, error) {
	if cached := r.getFromCache(id); cached != nil {
		return cached, nil
	}

	get, err := r.db.Get().
		Index(r.index).
		Type(crashType).
		Id(id).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	var report minidump.Report
	if err := json.Unmarshal(*get.Source, &report); err != nil {
		log.WithError(err).Error("Can't deserialize crash report")
		return nil, errors.Wrap(err, 0)
	}
	r.putInCache(&report)
	return &report, nil
}

// FindOlder returns up to size reports received more than older ago, oldest
// first. older uses Elasticsearch date math units, e.g. "16d".
func (r *Repository) FindOlder(ctx context.Context, older string, size int) ([]minidump.Report, error) {
	rng := elastic.NewRangeQuery("received").Lte(fmt.Sprintf("now-%s", older))

	searchRes, err := r.db.Search().
		Index(r.index).
		Type(crashType).
		Query(rng).
		Sort("received", true).
		Size(size).
		Do(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"older": older,
			"error": err,
		}).Error("Can't search crash reports")
		return nil, errors.Wrap(err, 0)
	}

	var rtyp minidump.Report
	var reports []minidump.Report
	for _, item := range searchRes.Each(reflect.TypeOf(rtyp)) {
		reports = append(reports, item.(minidump.Report))
	}
	return reports, nil
}

func (r *Repository) RemoveReport(ctx context.Context, id string) error {
	_, err := r.db.Delete().
		Index(r.index).
		Type(crashType).
		Id(id).
		Do(ctx)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func NewRepository(connectionUrl, index string, c Cashe) (*Repository, error) {
	b, err := elastic.NewClient(elastic.SetURL(connectionUrl), elastic.SetSniff(false))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return &Repository{
		db:    b,
		index: index,
		cache: c,
	}, nil
}
