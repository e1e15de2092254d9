package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"barrobot/internal/measure"
	"barrobot/internal/models"
	"barrobot/internal/scaling"
)

const (
	DefaultBaseURL = "https://www.thecocktaildb.com"
	freeKey        = "1"
	maxIngredients = 15
)

// Importer downloads the CocktailDB catalogue. With a paid key the whole
// catalogue comes from one search; the free key only allows searching by
// first letter, so every letter is fetched in turn.
type Importer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *zap.Logger
}

func NewImporter(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Importer {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		log:        log,
	}
}

// Paid reports whether a non-free API key is configured.
func (i *Importer) Paid() bool {
	return i.apiKey != "" && i.apiKey != freeKey
}

// Fetch downloads and converts the catalogue. In free mode a failing
// letter is skipped; in paid mode any failure is returned.
func (i *Importer) Fetch(ctx context.Context) ([]models.Recipe, error) {
	var drinks []map[string]any

	if i.Paid() {
		i.log.Info("fetching catalogue with paid key")
		d, err := i.search(ctx, "v2/"+i.apiKey, "s", "")
		if err != nil {
			return nil, err
		}
		drinks = d
	} else {
		i.log.Info("fetching catalogue letter by letter")
		for c := 'a'; c <= 'z'; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := i.search(ctx, "v1/"+freeKey, "f", string(c))
			if err != nil {
				i.log.Warn("letter skipped", zap.String("letter", string(c)), zap.Error(err))
				continue
			}
			drinks = append(drinks, d...)
		}
	}

	recipes := make([]models.Recipe, 0, len(drinks))
	for _, d := range drinks {
		if r, ok := convert(d); ok {
			recipes = append(recipes, r)
		}
	}
	i.log.Info("catalogue downloaded", zap.Int("drinks", len(drinks)), zap.Int("recipes", len(recipes)))
	return recipes, nil
}

// Sync fetches the catalogue and replaces the store with it. An empty
// download leaves the store untouched.
func (i *Importer) Sync(ctx context.Context, store *Store) (int, error) {
	recipes, err := i.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(recipes) == 0 {
		return 0, nil
	}
	if err := store.ReplaceAll(recipes); err != nil {
		return 0, err
	}
	return len(recipes), nil
}

// Schedule re-syncs store at every time matched by the cron expression
// until ctx is done.
func (i *Importer) Schedule(ctx context.Context, store *Store, expr string) error {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", expr, err)
	}

	go func() {
		for {
			next := e.Next(time.Now())
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			n, err := i.Sync(ctx, store)
			if err != nil {
				i.log.Warn("scheduled refresh failed", zap.Error(err))
				continue
			}
			i.log.Info("scheduled refresh done", zap.Int("recipes", n))
		}
	}()
	return nil
}

type searchResponse struct {
	Drinks []map[string]any `json:"drinks"`
}

func (i *Importer) search(ctx context.Context, version, param, value string) ([]map[string]any, error) {
	u := fmt.Sprintf("%s/api/json/%s/search.php?%s", i.baseURL, version, url.Values{param: {value}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cocktaildb returned %s", resp.Status)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cocktaildb response: %w", err)
	}
	return body.Drinks, nil
}

// convert maps one CocktailDB drink object onto a Recipe whose liquids are
// normalized to one shot.
func convert(d map[string]any) (models.Recipe, bool) {
	str := func(k string) string {
		s, _ := d[k].(string)
		return strings.TrimSpace(s)
	}

	id := str("idDrink")
	if id == "" {
		return models.Recipe{}, false
	}

	var lines []models.IngredientLine
	for n := 1; n <= maxIngredients; n++ {
		item := str(fmt.Sprintf("strIngredient%d", n))
		if item == "" {
			continue
		}
		raw := str(fmt.Sprintf("strMeasure%d", n))
		lines = append(lines, models.IngredientLine{
			Item:  models.NormalizeName(item),
			QtyOz: measure.Ounces(raw),
			Raw:   raw,
		})
	}

	return models.Recipe{
		ID:           id,
		Name:         str("strDrink"),
		Image:        str("strDrinkThumb"),
		Instructions: str("strInstructions"),
		Ingredients:  scaling.NormalizeToReference(lines, models.DefaultShotOz),
	}, true
}

// ErrEmptyCatalogue is returned by Bootstrap when neither the download nor
// the fallback produced recipes.
var ErrEmptyCatalogue = errors.New("no recipes available")

// Bootstrap fills an empty store: first from the importer, then from
// fallback. A populated store is left alone.
func Bootstrap(ctx context.Context, store *Store, imp *Importer, fallback []models.Recipe, log *zap.Logger) error {
	n, err := store.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if imp != nil {
		n, err = imp.Sync(ctx, store)
		if err != nil {
			log.Warn("recipe import failed", zap.Error(err))
		}
		if n > 0 {
			return nil
		}
	}

	if len(fallback) == 0 {
		return ErrEmptyCatalogue
	}
	log.Info("using built-in recipes", zap.Int("recipes", len(fallback)))
	return store.ReplaceAll(fallback)
}
