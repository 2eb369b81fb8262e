package postgres

// Migrate creates or updates the tables of the given models.
func (p *Postgres) Migrate(models ...interface{}) error {
	return p.DB().AutoMigrate(models...)
}
