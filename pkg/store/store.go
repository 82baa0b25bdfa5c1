// Package store is the sqlite persistence layer: the historical networks
// and observations tables plus the ephemeral per-scan tables the score
// engine reads. It implements pkg.ObservationStore and pkg.ScoreStore.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
)

// Config holds database settings.
type Config struct {
	Path          string `json:"path"`
	BusyTimeoutMs int    `json:"busy_timeout_ms"`
}

// DefaultConfig returns database defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:          "/var/lib/apscout/apscout.db",
		BusyTimeoutMs: 5000,
	}
}

// Store wraps the sqlite handle.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the database and ensures the schema.
func Open(config *Config, logger *logx.Logger) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BusyTimeoutMs <= 0 {
		config.BusyTimeoutMs = 5000
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_loc=UTC",
		config.Path, config.BusyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn between the score and location loops.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS networks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bssid TEXT UNIQUE NOT NULL,
		ssid TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		altitude REAL,
		channel INTEGER,
		encryption TEXT,
		cipher TEXT,
		authentication TEXT,
		wps_enabled INTEGER NOT NULL DEFAULT 0,
		wps_locked INTEGER NOT NULL DEFAULT 0,
		min_signal INTEGER,
		max_signal INTEGER,
		avg_signal INTEGER,
		current_signal INTEGER,
		current_attack_score REAL,
		highest_attack_score REAL,
		lowest_attack_score REAL,
		risk_level TEXT,
		first_seen DATETIME,
		last_seen DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_networks_bssid ON networks(bssid);
	CREATE INDEX IF NOT EXISTS idx_networks_ssid ON networks(ssid);

	CREATE TABLE IF NOT EXISTS network_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bssid TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		accuracy REAL,
		signal_dbm INTEGER,
		timestamp DATETIME NOT NULL,
		source TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_observations_bssid ON network_observations(bssid);
	CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON network_observations(timestamp);

	CREATE TABLE IF NOT EXISTS current_scan_networks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bssid TEXT UNIQUE NOT NULL,
		ssid TEXT NOT NULL DEFAULT '',
		channel TEXT,
		encryption TEXT,
		cipher TEXT,
		authentication TEXT,
		power INTEGER,
		beacon_count INTEGER NOT NULL DEFAULT 0,
		wps_enabled INTEGER NOT NULL DEFAULT 0,
		attack_score REAL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS current_scan_clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT UNIQUE NOT NULL,
		bssid TEXT,
		power INTEGER,
		packets INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scan_clients_bssid ON current_scan_clients(bssid);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// UpsertNetwork inserts or refreshes a historical network row. An empty
// SSID never overwrites a stored non-empty one, so a hidden-mode rescan
// cannot erase a name learned earlier. Signal aggregates ratchet.
func (s *Store) UpsertNetwork(rec pkg.NetworkRecord) error {
	now := time.Now().UTC()
	firstSeen := rec.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = now
	}
	lastSeen := rec.LastSeen
	if lastSeen.IsZero() {
		lastSeen = now
	}

	_, err := s.db.Exec(`
		INSERT INTO networks (
			bssid, ssid, channel, encryption, cipher, authentication,
			wps_enabled, wps_locked, current_signal, min_signal, max_signal,
			first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bssid) DO UPDATE SET
			ssid = CASE WHEN excluded.ssid != '' THEN excluded.ssid ELSE networks.ssid END,
			channel = excluded.channel,
			encryption = excluded.encryption,
			cipher = excluded.cipher,
			authentication = excluded.authentication,
			wps_enabled = excluded.wps_enabled,
			wps_locked = excluded.wps_locked,
			current_signal = excluded.current_signal,
			min_signal = MIN(COALESCE(networks.min_signal, excluded.min_signal), excluded.min_signal),
			max_signal = MAX(COALESCE(networks.max_signal, excluded.max_signal), excluded.max_signal),
			last_seen = excluded.last_seen`,
		rec.BSSID, rec.SSID, rec.Channel, rec.Encryption, rec.Cipher,
		rec.Authentication, rec.WPSEnabled, rec.WPSLocked,
		nullableInt(rec.CurrentSignal), nullableInt(rec.CurrentSignal),
		nullableInt(rec.CurrentSignal), firstSeen.UTC(), lastSeen.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert network %s: %w", rec.BSSID, err)
	}
	return nil
}

// AddObservation appends a sighting. A stub networks row is created on
// first contact so location estimates always have a home.
func (s *Store) AddObservation(obs pkg.Observation) error {
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO networks (bssid, first_seen, last_seen) VALUES (?, ?, ?)`,
		obs.BSSID, ts.UTC(), ts.UTC()); err != nil {
		return fmt.Errorf("failed to ensure network row for %s: %w", obs.BSSID, err)
	}

	var lat, lon interface{}
	if obs.Latitude != 0 || obs.Longitude != 0 {
		lat, lon = obs.Latitude, obs.Longitude
	}

	_, err := s.db.Exec(`
		INSERT INTO network_observations
			(bssid, latitude, longitude, altitude, accuracy, signal_dbm, timestamp, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.BSSID, lat, lon, nullableFloat(obs.Altitude),
		nullableFloat(obs.Accuracy), nullableInt(obs.SignalDBm),
		ts.UTC(), obs.Source)
	if err != nil {
		return fmt.Errorf("failed to add observation for %s: %w", obs.BSSID, err)
	}
	return nil
}

// GetObservations returns observations for a network newer than since,
// oldest first. With requireLocation set, rows without coordinates are
// excluded.
func (s *Store) GetObservations(bssid string, since time.Time, requireLocation bool) ([]pkg.Observation, error) {
	query := `
		SELECT bssid, latitude, longitude, altitude, accuracy, signal_dbm, timestamp, source
		FROM network_observations
		WHERE bssid = ? AND timestamp >= ?`
	if requireLocation {
		query += ` AND latitude IS NOT NULL AND longitude IS NOT NULL`
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.Query(query, bssid, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query observations for %s: %w", bssid, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetRecentObservations returns up to limit GPS-tagged observations,
// newest first.
func (s *Store) GetRecentObservations(bssid string, limit int) ([]pkg.Observation, error) {
	rows, err := s.db.Query(`
		SELECT bssid, latitude, longitude, altitude, accuracy, signal_dbm, timestamp, source
		FROM network_observations
		WHERE bssid = ? AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY timestamp DESC
		LIMIT ?`, bssid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent observations for %s: %w", bssid, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetNetworkLocation returns the stored coordinate, or nil when the network
// has never been located.
func (s *Store) GetNetworkLocation(bssid string) (*pkg.Location, error) {
	var lat, lon, alt sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT latitude, longitude, altitude FROM networks WHERE bssid = ?`,
		bssid).Scan(&lat, &lon, &alt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query location for %s: %w", bssid, err)
	}
	if !lat.Valid || !lon.Valid {
		return nil, nil
	}

	loc := &pkg.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	if alt.Valid {
		v := alt.Float64
		loc.Altitude = &v
	}
	return loc, nil
}

// GetLocatedNetworks lists BSSIDs with a stored coordinate.
func (s *Store) GetLocatedNetworks() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT bssid FROM networks WHERE latitude IS NOT NULL AND longitude IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query located networks: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// GetNetworksWithObservations lists BSSIDs with at least min GPS-tagged
// observations on record.
func (s *Store) GetNetworksWithObservations(min int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT bssid FROM network_observations
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		GROUP BY bssid
		HAVING COUNT(*) >= ?`, min)
	if err != nil {
		return nil, fmt.Errorf("failed to query networks with observations: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// WriteEstimatedLocation overwrites a network's stored coordinate. A nil
// altitude preserves whatever altitude is already stored.
func (s *Store) WriteEstimatedLocation(bssid string, lat, lon float64, altitude *float64) error {
	_, err := s.db.Exec(`
		INSERT INTO networks (bssid, latitude, longitude, altitude, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bssid) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = COALESCE(excluded.altitude, networks.altitude)`,
		bssid, lat, lon, nullableFloat(altitude), time.Now().UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write location for %s: %w", bssid, err)
	}
	return nil
}

// UpsertScanNetwork refreshes a row in the ephemeral scan table.
func (s *Store) UpsertScanNetwork(n pkg.NetworkSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO current_scan_networks
			(bssid, ssid, channel, encryption, cipher, authentication,
			 power, beacon_count, wps_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bssid) DO UPDATE SET
			ssid = excluded.ssid,
			channel = excluded.channel,
			encryption = excluded.encryption,
			cipher = excluded.cipher,
			authentication = excluded.authentication,
			power = excluded.power,
			beacon_count = excluded.beacon_count,
			wps_enabled = excluded.wps_enabled,
			updated_at = excluded.updated_at`,
		n.BSSID, n.SSID, n.Channel, n.Encryption, n.Cipher, n.Authentication,
		nullableInt(n.SignalDBm), n.BeaconCount, n.WPSEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert scan network %s: %w", n.BSSID, err)
	}
	return nil
}

// UpsertScanClient refreshes a client row in the ephemeral scan table.
func (s *Store) UpsertScanClient(mac, bssid string, powerDBm, packets int) error {
	_, err := s.db.Exec(`
		INSERT INTO current_scan_clients (mac_address, bssid, power, packets, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			bssid = excluded.bssid,
			power = excluded.power,
			packets = excluded.packets,
			updated_at = excluded.updated_at`,
		mac, bssid, powerDBm, packets, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert scan client %s: %w", mac, err)
	}
	return nil
}

// ClearScanTables empties the ephemeral tables at the start of a scan
// session.
func (s *Store) ClearScanTables() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"current_scan_networks", "current_scan_clients"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// GetCurrentlyVisibleNetworks returns the ephemeral scan table contents.
func (s *Store) GetCurrentlyVisibleNetworks() ([]pkg.NetworkSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT bssid, ssid, channel, encryption, cipher, authentication,
		       power, beacon_count, wps_enabled
		FROM current_scan_networks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan networks: %w", err)
	}
	defer rows.Close()

	var networks []pkg.NetworkSnapshot
	for rows.Next() {
		var n pkg.NetworkSnapshot
		var channel, encryption, cipher, auth sql.NullString
		var power sql.NullInt64
		if err := rows.Scan(&n.BSSID, &n.SSID, &channel, &encryption,
			&cipher, &auth, &power, &n.BeaconCount, &n.WPSEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan network row: %w", err)
		}
		n.Channel = channel.String
		n.Encryption = encryption.String
		n.Cipher = cipher.String
		n.Authentication = auth.String
		if power.Valid {
			v := int(power.Int64)
			n.SignalDBm = &v
		}
		networks = append(networks, n)
	}
	return networks, rows.Err()
}

// GetClientCountsByBSSID counts associated clients per AP, skipping the
// airodump "(not associated)" placeholder.
func (s *Store) GetClientCountsByBSSID() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT bssid, COUNT(*)
		FROM current_scan_clients
		WHERE bssid IS NOT NULL AND bssid != '' AND bssid != '(not associated)'
		GROUP BY bssid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query client counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bssid string
		var count int
		if err := rows.Scan(&bssid, &count); err != nil {
			return nil, fmt.Errorf("failed to scan client count row: %w", err)
		}
		counts[bssid] = count
	}
	return counts, rows.Err()
}

// WriteScores commits a score batch in one transaction: the ephemeral scan
// rows get the new score, and the historical rows get the score, risk
// level, and the highest/lowest ratchet.
func (s *Store) WriteScores(updates []pkg.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin score transaction: %w", err)
	}
	defer tx.Rollback()

	scanStmt, err := tx.Prepare(
		`UPDATE current_scan_networks SET attack_score = ? WHERE bssid = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan update: %w", err)
	}
	defer scanStmt.Close()

	histStmt, err := tx.Prepare(`
		UPDATE networks SET
			current_attack_score = ?1,
			highest_attack_score = MAX(COALESCE(highest_attack_score, ?1), ?1),
			lowest_attack_score = MIN(COALESCE(lowest_attack_score, ?1), ?1),
			risk_level = ?2
		WHERE bssid = ?3`)
	if err != nil {
		return fmt.Errorf("failed to prepare history update: %w", err)
	}
	defer histStmt.Close()

	for _, u := range updates {
		if _, err := scanStmt.Exec(u.Score, u.BSSID); err != nil {
			return fmt.Errorf("failed to update scan score for %s: %w", u.BSSID, err)
		}
		if _, err := histStmt.Exec(u.Score, string(u.Risk), u.BSSID); err != nil {
			return fmt.Errorf("failed to update history score for %s: %w", u.BSSID, err)
		}
	}

	return tx.Commit()
}

// GetNetwork returns the historical record for one BSSID, or nil when the
// network has never been seen.
func (s *Store) GetNetwork(bssid string) (*pkg.NetworkRecord, error) {
	var rec pkg.NetworkRecord
	var ssid, encryption, cipher, auth, risk sql.NullString
	var channel sql.NullInt64
	var lat, lon, alt, cur, high, low sql.NullFloat64
	var minSig, maxSig, avgSig, curSig sql.NullInt64
	var firstSeen, lastSeen sql.NullTime

	err := s.db.QueryRow(`
		SELECT bssid, ssid, channel, encryption, cipher, authentication,
		       wps_enabled, wps_locked, latitude, longitude, altitude,
		       min_signal, max_signal, avg_signal, current_signal,
		       current_attack_score, highest_attack_score, lowest_attack_score,
		       risk_level, first_seen, last_seen
		FROM networks WHERE bssid = ?`, bssid).Scan(
		&rec.BSSID, &ssid, &channel, &encryption, &cipher, &auth,
		&rec.WPSEnabled, &rec.WPSLocked, &lat, &lon, &alt,
		&minSig, &maxSig, &avgSig, &curSig,
		&cur, &high, &low, &risk, &firstSeen, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query network %s: %w", bssid, err)
	}

	rec.SSID = ssid.String
	rec.Channel = int(channel.Int64)
	rec.Encryption = encryption.String
	rec.Cipher = cipher.String
	rec.Authentication = auth.String
	rec.RiskLevel = pkg.RiskLevel(risk.String)
	rec.Latitude = floatPtr(lat)
	rec.Longitude = floatPtr(lon)
	rec.Altitude = floatPtr(alt)
	rec.MinSignal = intPtr(minSig)
	rec.MaxSignal = intPtr(maxSig)
	rec.AvgSignal = intPtr(avgSig)
	rec.CurrentSignal = intPtr(curSig)
	rec.CurrentScore = floatPtr(cur)
	rec.HighestScore = floatPtr(high)
	rec.LowestScore = floatPtr(low)
	if firstSeen.Valid {
		rec.FirstSeen = firstSeen.Time
	}
	if lastSeen.Valid {
		rec.LastSeen = lastSeen.Time
	}
	return &rec, nil
}

func scanObservations(rows *sql.Rows) ([]pkg.Observation, error) {
	var observations []pkg.Observation
	for rows.Next() {
		var obs pkg.Observation
		var lat, lon, alt, acc sql.NullFloat64
		var signal sql.NullInt64
		var source sql.NullString
		if err := rows.Scan(&obs.BSSID, &lat, &lon, &alt, &acc,
			&signal, &obs.Timestamp, &source); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		obs.Latitude = lat.Float64
		obs.Longitude = lon.Float64
		obs.Altitude = floatPtr(alt)
		obs.Accuracy = floatPtr(acc)
		obs.SignalDBm = intPtr(signal)
		obs.Source = source.String
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
