package geoindex

import (
	"math"
	"sort"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/metrics"
)

// metersPerDegreeLat is the approximate north-south span of one degree of
// latitude. Longitude degrees shrink with latitude and are corrected by
// cos(lat) where it matters.
const metersPerDegreeLat = 111320.0

// DefaultCellSizeMeters is the grid cell edge used when no size is configured.
const DefaultCellSizeMeters = 500.0

// Candidate is one driver returned by a nearest query, ordered by ascending
// great-circle distance from the query origin.
type Candidate struct {
	DriverID       kernel.UUID
	Point          kernel.GeoPoint
	DistanceMeters float64
	Availability   driver.Availability
	RecordedAt     time.Time
}

type cellKey struct {
	row int32
	col int32
}

type entry struct {
	driverID     kernel.UUID
	lat          float64
	lon          float64
	recordedAt   time.Time
	availability driver.Availability
	cell         cellKey
}

// Index is an in-process concurrent geospatial index of driver positions,
// keyed by quantized lat/lon grid cells. It is the read-optimized shadow of
// the driver repository: commands update it after a successful mutation, the
// dispatch sweep queries it to gather candidates without touching storage.
//
// All methods are safe for concurrent use.
type Index struct {
	mu          sync.RWMutex
	cellSizeDeg float64
	cells       map[cellKey]map[kernel.UUID]*entry
	byDriver    map[kernel.UUID]*entry
}

// NewIndex creates an empty index with the given grid cell edge length.
// Sizes smaller than one meter fall back to DefaultCellSizeMeters.
func NewIndex(cellSizeMeters float64) *Index {
	if cellSizeMeters < 1 {
		cellSizeMeters = DefaultCellSizeMeters
	}
	return &Index{
		cellSizeDeg: cellSizeMeters / metersPerDegreeLat,
		cells:       make(map[cellKey]map[kernel.UUID]*entry),
		byDriver:    make(map[kernel.UUID]*entry),
	}
}

// Len returns the number of drivers currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byDriver)
}

// Upsert records a driver's position and availability. Position updates are
// last-writer-wins by report timestamp: an update not strictly newer than the
// stored one is dropped and Upsert returns false. A dropped update still
// refreshes availability, since availability changes are ordered by the
// aggregate's version rather than the position clock.
func (idx *Index) Upsert(
	driverID kernel.UUID,
	point kernel.GeoPoint,
	recordedAt time.Time,
	availability driver.Availability,
) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	existing, ok := idx.byDriver[driverID]
	if ok && !recordedAt.After(existing.recordedAt) {
		existing.availability = availability
		return false
	}

	cell := idx.cellFor(point.Lat(), point.Lon())
	if ok {
		if existing.cell != cell {
			idx.removeFromCell(existing)
			idx.addToCell(cell, existing)
			existing.cell = cell
		}
		existing.lat = point.Lat()
		existing.lon = point.Lon()
		existing.recordedAt = recordedAt
		existing.availability = availability
		return true
	}

	e := &entry{
		driverID:     driverID,
		lat:          point.Lat(),
		lon:          point.Lon(),
		recordedAt:   recordedAt,
		availability: availability,
		cell:         cell,
	}
	idx.byDriver[driverID] = e
	idx.addToCell(cell, e)
	metrics.IndexedDrivers.Set(float64(len(idx.byDriver)))
	return true
}

// SetAvailability updates a driver's availability without touching its
// position. Returns false when the driver is not indexed, which is normal
// for a driver that has not reported a position yet.
func (idx *Index) SetAvailability(driverID kernel.UUID, availability driver.Availability) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.byDriver[driverID]
	if !ok {
		return false
	}
	e.availability = availability
	return true
}

// Remove drops a driver from the index, e.g. when it goes offline.
// Returns false when the driver was not indexed.
func (idx *Index) Remove(driverID kernel.UUID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.byDriver[driverID]
	if !ok {
		return false
	}
	idx.removeFromCell(e)
	delete(idx.byDriver, driverID)
	metrics.IndexedDrivers.Set(float64(len(idx.byDriver)))
	return true
}

// QueryNearest returns up to limit drivers within radiusMeters of the origin,
// ordered by ascending great-circle distance with ties broken by driver id.
// A filter of driver.AvailabilityUnknown matches every availability.
// Candidate gathering is bounded by the grid cells the radius covers.
func (idx *Index) QueryNearest(
	origin kernel.GeoPoint,
	radiusMeters float64,
	limit int,
	filter driver.Availability,
) []Candidate {
	if radiusMeters <= 0 || limit <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidates := make([]Candidate, 0, limit)
	for _, cell := range idx.coveredCells(origin.Lat(), origin.Lon(), radiusMeters) {
		for _, e := range idx.cells[cell] {
			if filter != driver.AvailabilityUnknown && e.availability != filter {
				continue
			}
			distance := kernel.HaversineMeters(origin.Lat(), origin.Lon(), e.lat, e.lon)
			if distance > radiusMeters {
				continue
			}
			point, err := kernel.NewGeoPoint(e.lat, e.lon)
			if err != nil {
				continue
			}
			candidates = append(candidates, Candidate{
				DriverID:       e.driverID,
				Point:          point,
				DistanceMeters: distance,
				Availability:   e.availability,
				RecordedAt:     e.recordedAt,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceMeters != candidates[j].DistanceMeters {
			return candidates[i].DistanceMeters < candidates[j].DistanceMeters
		}
		return candidates[i].DriverID.String() < candidates[j].DriverID.String()
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (idx *Index) cellFor(lat, lon float64) cellKey {
	return cellKey{
		row: int32(math.Floor(lat / idx.cellSizeDeg)),
		col: int32(math.Floor(lon / idx.cellSizeDeg)),
	}
}

// coveredCells returns every grid cell a radius around the origin can touch.
// Longitude spans widen by 1/cos(lat) away from the equator; the cosine is
// clamped so polar queries degrade to a wide scan instead of dividing by zero.
func (idx *Index) coveredCells(lat, lon, radiusMeters float64) []cellKey {
	latDelta := radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonDelta := radiusMeters / (metersPerDegreeLat * cosLat)

	minRow := int32(math.Floor((lat - latDelta) / idx.cellSizeDeg))
	maxRow := int32(math.Floor((lat + latDelta) / idx.cellSizeDeg))
	minCol := int32(math.Floor((lon - lonDelta) / idx.cellSizeDeg))
	maxCol := int32(math.Floor((lon + lonDelta) / idx.cellSizeDeg))

	keys := make([]cellKey, 0, int(maxRow-minRow+1)*int(maxCol-minCol+1))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			key := cellKey{row: row, col: col}
			if _, ok := idx.cells[key]; ok {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func (idx *Index) addToCell(cell cellKey, e *entry) {
	bucket, ok := idx.cells[cell]
	if !ok {
		bucket = make(map[kernel.UUID]*entry)
		idx.cells[cell] = bucket
	}
	bucket[e.driverID] = e
}

func (idx *Index) removeFromCell(e *entry) {
	bucket, ok := idx.cells[e.cell]
	if !ok {
		return
	}
	delete(bucket, e.driverID)
	if len(bucket) == 0 {
		delete(idx.cells, e.cell)
	}
}
