package field

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/zeusync/reefrush/internal/core/models"
)

const (
	PlayerAcceleration = 600
	PlayerMaxSpeed     = 320
	powerUpSize        = 24
)

var species = []string{"sardine", "clownfish", "tuna", "grouper", "barracuda"}

// NewPlayer builds a player fish centered on (x, y).
func NewPlayer(id models.EntityID, x, y, size float64) *models.Entity {
	return models.NewEntity(id, models.KindPlayer, "",
		models.Bounds{X: x - size/2, Y: y - size/2, Width: size, Height: size},
		models.Movement{Acceleration: PlayerAcceleration, MaxSpeed: PlayerMaxSpeed})
}

// SpawnerConfig controls the population the spawner maintains.
type SpawnerConfig struct {
	// Every is the number of ticks between two spawns.
	Every int
	// MaxEnemies caps living enemy fish.
	MaxEnemies int
	// MinSize and MaxSize bound the size of new enemies.
	MinSize, MaxSize float64
	// PowerUpChance is the probability that a spawn round also drops a power-up.
	PowerUpChance float64
	// PowerUps are the variants a dropped power-up is drawn from.
	PowerUps []string
}

// Spawner is a tick listener that keeps the field stocked with enemy fish and
// the occasional power-up.
type Spawner struct {
	field *Field
	cfg   SpawnerConfig

	mu    sync.Mutex
	rng   *rand.Rand
	ticks int
}

func NewSpawner(f *Field, cfg SpawnerConfig, rng *rand.Rand) *Spawner {
	if cfg.Every < 1 {
		cfg.Every = 1
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = 12
	}
	if cfg.MaxSize < cfg.MinSize {
		cfg.MaxSize = cfg.MinSize * 6
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Spawner{field: f, cfg: cfg, rng: rng}
}

func (s *Spawner) BeforeStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	if s.ticks%s.cfg.Every != 0 {
		return nil
	}
	if s.field.Count(models.KindEnemy)+s.field.Queued() < s.cfg.MaxEnemies {
		s.field.Queue(s.enemy())
	}
	if len(s.cfg.PowerUps) > 0 && s.rng.Float64() < s.cfg.PowerUpChance {
		s.field.Queue(s.powerUp())
	}
	return nil
}

func (s *Spawner) AfterStep() error { return nil }

func (s *Spawner) enemy() *models.Entity {
	size := s.cfg.MinSize + s.rng.Float64()*(s.cfg.MaxSize-s.cfg.MinSize)
	idx := int((size - s.cfg.MinSize) / (s.cfg.MaxSize - s.cfg.MinSize + 1) * float64(len(species)))
	angle := s.rng.Float64() * 2 * math.Pi

	e := models.NewEntity(s.field.NextID(), models.KindEnemy, species[min(idx, len(species)-1)],
		s.place(size),
		models.Movement{
			Acceleration: 60 + s.rng.Float64()*100,
			MaxSpeed:     40 + s.rng.Float64()*100,
		})
	e.Steer(math.Cos(angle), math.Sin(angle))
	return e
}

func (s *Spawner) powerUp() *models.Entity {
	variant := s.cfg.PowerUps[s.rng.IntN(len(s.cfg.PowerUps))]
	return models.NewEntity(s.field.NextID(), models.KindPowerUp, variant, s.place(powerUpSize), models.Movement{})
}

func (s *Spawner) place(size float64) models.Bounds {
	return models.Bounds{
		X:      s.rng.Float64() * math.Max(0, s.field.Width()-size),
		Y:      s.rng.Float64() * math.Max(0, s.field.Height()-size),
		Width:  size,
		Height: size,
	}
}
