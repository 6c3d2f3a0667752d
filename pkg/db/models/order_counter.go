package models

// OrderCounter hands out the per-day order number sequence. Day is the
// DDMMYY digits embedded in the order number; Channel is the sales
// channel letter. Seq starts at 1001 each day.
type OrderCounter struct {
	Day     string `gorm:"column:day;primaryKey"`
	Channel string `gorm:"column:channel;primaryKey"`
	Seq     int64  `gorm:"column:seq;not null"`
}
