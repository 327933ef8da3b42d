package models

import "math"

// BaseXPPerLevel scales the XP curve: level n → n+1 needs floor(BaseXPPerLevel * n^1.2)
const BaseXPPerLevel = 100

// XPForNextLevel returns XP required to go from level to level+1
func XPForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(level), 1.2))
}

// LevelForExperience returns the level reached with a cumulative XP total
func LevelForExperience(xp int64) int {
	level := 1
	if xp <= 0 {
		return level
	}
	remaining := xp
	for {
		need := XPForNextLevel(level)
		if remaining < need {
			return level
		}
		remaining -= need
		level++
	}
}
