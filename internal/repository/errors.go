package repository

import "errors"

var (
	// ErrSlotTaken слот менеджера уже занят другой встречей
	ErrSlotTaken = errors.New("slot already taken")
	// ErrOnboardingExists у создателя уже есть ознакомительная встреча
	ErrOnboardingExists = errors.New("onboarding meeting already exists")
	// ErrDuplicate запись с таким ключом уже существует
	ErrDuplicate = errors.New("record already exists")
	// ErrNotFound запись для обновления не найдена
	ErrNotFound = errors.New("record not found")
)
