package utils

import (
	"errors"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	UserId     int    `json:"userId"`
	UserName   string `json:"userName"`
	BusinessId string `json:"businessId"`
	Division   string `json:"division"`
	jwt.StandardClaims
}

func getJwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "aVerySecretKeyThatShouldBeChanged"
	}
	return secret
}

func JwtGenerate(userId int, userName string, businessId string, division string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserId:     userId,
		UserName:   userName,
		BusinessId: businessId,
		Division:   division,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour * 24 * 7).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})

	token, err := t.SignedString([]byte(getJwtSecret()))
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("there was an error in parsing token")
		}
		return []byte(getJwtSecret()), nil
	})
}
